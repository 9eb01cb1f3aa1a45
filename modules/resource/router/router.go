package router

import (
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/resource/controller"
)

type ResourceRouter struct {
	Controller *controller.ResourceController
}

func NewResourceRouter(ctrl *controller.ResourceController) *ResourceRouter {
	return &ResourceRouter{Controller: ctrl}
}

func (r *ResourceRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	group := e.Group("/api/v1/resources", mw.Identity())
	group.POST("", r.Controller.CreateResource)
	group.GET("", r.Controller.ListResources)
	group.PUT("/:id", r.Controller.UpdateResource)
	group.DELETE("/:id", r.Controller.DeleteResource)
}
