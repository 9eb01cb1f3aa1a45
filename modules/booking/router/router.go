package router

import (
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/booking/controller"
)

type BookingRouter struct {
	Controller *controller.BookingController
}

func NewBookingRouter(ctrl *controller.BookingController) *BookingRouter {
	return &BookingRouter{Controller: ctrl}
}

func (r *BookingRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1", mw.Identity())

	workflows := v1.Group("/booking/workflows")
	workflows.POST("", r.Controller.CreateWorkflow)
	workflows.GET("", r.Controller.ListWorkflows)
	workflows.GET("/:id", r.Controller.GetWorkflow)
	workflows.PUT("/:id", r.Controller.UpdateWorkflow)
	workflows.DELETE("/:id", r.Controller.DeleteWorkflow)

	bookings := v1.Group("/bookings")
	bookings.POST("", r.Controller.CreateBooking)
	bookings.GET("", r.Controller.ListMyBookings)
	bookings.GET("/:id", r.Controller.GetBooking)
	bookings.POST("/:id/approve", r.Controller.ApproveBooking)
	bookings.POST("/:id/reject", r.Controller.RejectBooking)
	bookings.POST("/:id/cancel", r.Controller.CancelBooking)

	// Public token links for external approvers, no identity middleware.
	e.POST("/booking-actions/:token/:decision", r.Controller.DecideByToken)
}
