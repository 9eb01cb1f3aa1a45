package calendar

import (
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/calendar/controller"
	"go-meeting-core/modules/calendar/router"
	"go-meeting-core/modules/calendar/service"
)

// Init registers the calendar routes. The coordinator is constructed by the
// server because the booking engine and availability query engine consume it
// as event mirror and busy-interval source.
func Init(e *echo.Echo, mw *middleware.Middleware, coordinator *service.SyncCoordinator) {
	ctrl := controller.NewCalendarController(coordinator)
	router.NewCalendarRouter(ctrl).Setup(e, mw)
}
