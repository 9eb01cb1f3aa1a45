package router

import (
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/calendar/controller"
)

type CalendarRouter struct {
	Controller *controller.CalendarController
}

func NewCalendarRouter(ctrl *controller.CalendarController) *CalendarRouter {
	return &CalendarRouter{Controller: ctrl}
}

func (r *CalendarRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1/calendar", mw.Identity())

	connections := v1.Group("/connections")
	connections.POST("", r.Controller.CreateConnection)
	connections.GET("", r.Controller.ListConnections)
	connections.PUT("/:id/settings", r.Controller.UpdateSettings)
	connections.DELETE("/:id", r.Controller.DeleteConnection)
	connections.POST("/:id/sync", r.Controller.TriggerSync)

	v1.GET("/syncs/:id", r.Controller.GetSync)
	v1.GET("/day-availability", r.Controller.DayAvailability)
}
