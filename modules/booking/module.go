package booking

import (
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/booking/controller"
	"go-meeting-core/modules/booking/router"
	"go-meeting-core/modules/booking/service"
)

// Init registers the booking routes. The engine is constructed by the server
// because it shares the slot ledger and query engine with the availability
// module.
func Init(
	e *echo.Echo,
	mw *middleware.Middleware,
	workflows service.WorkflowServiceInterface,
	engine *service.WorkflowEngine,
) {
	ctrl := controller.NewBookingController(workflows, engine)
	router.NewBookingRouter(ctrl).Setup(e, mw)
}
