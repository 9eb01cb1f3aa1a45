package availability

import (
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/availability/controller"
	"go-meeting-core/modules/availability/router"
	"go-meeting-core/modules/availability/service"
)

// Init registers the availability routes. Services are constructed by the
// server so the booking module can share the ledger and query engine.
func Init(
	e *echo.Echo,
	mw *middleware.Middleware,
	profiles service.ProfileServiceInterface,
	query *service.QueryEngine,
	ledger *service.SlotLedger,
) {
	ctrl := controller.NewAvailabilityController(profiles, query, ledger)
	router.NewAvailabilityRouter(ctrl).Setup(e, mw)
}
