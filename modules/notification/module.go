package notification

import (
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/notification/controller"
	"go-meeting-core/modules/notification/router"
	"go-meeting-core/modules/notification/service"
)

// Init registers the notification feed routes. The service itself is built
// by the server so the booking engine can use it as its notifier.
func Init(e *echo.Echo, mw *middleware.Middleware, svc *service.NotificationService) {
	ctrl := controller.NewNotificationController(svc)
	router.NewNotificationRouter(ctrl).Setup(e, mw)
}
