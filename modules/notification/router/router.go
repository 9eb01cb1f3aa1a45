package router

import (
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/notification/controller"
)

type NotificationRouter struct {
	Controller *controller.NotificationController
}

func NewNotificationRouter(ctrl *controller.NotificationController) *NotificationRouter {
	return &NotificationRouter{Controller: ctrl}
}

func (r *NotificationRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	group := e.Group("/api/v1/notifications", mw.Identity())
	group.GET("", r.Controller.ListMyNotifications)
	group.GET("/unread-count", r.Controller.CountUnread)
	group.PUT("/mark-read", r.Controller.MarkAsRead)
	group.PUT("/mark-all-read", r.Controller.MarkAllAsRead)
}
