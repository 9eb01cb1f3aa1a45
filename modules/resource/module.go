package resource

import (
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/resource/controller"
	"go-meeting-core/modules/resource/router"
	"go-meeting-core/modules/resource/service"
)

// Init registers the resource catalog routes. The service is built by the
// server so the booking engine can use it as its resource reserver.
func Init(e *echo.Echo, mw *middleware.Middleware, svc *service.ResourceService) {
	ctrl := controller.NewResourceController(svc)
	router.NewResourceRouter(ctrl).Setup(e, mw)
}
