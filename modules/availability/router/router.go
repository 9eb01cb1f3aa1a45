package router

import (
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/availability/controller"
)

type AvailabilityRouter struct {
	Controller *controller.AvailabilityController
}

func NewAvailabilityRouter(ctrl *controller.AvailabilityController) *AvailabilityRouter {
	return &AvailabilityRouter{Controller: ctrl}
}

func (r *AvailabilityRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1", mw.Identity())

	profiles := v1.Group("/availability/profiles")
	profiles.POST("", r.Controller.CreateProfile)
	profiles.GET("", r.Controller.GetMyProfiles)
	profiles.GET("/:id", r.Controller.GetProfile)
	profiles.PUT("/:id", r.Controller.UpdateProfile)
	profiles.DELETE("/:id", r.Controller.DeleteProfile)
	profiles.POST("/:id/regenerate", r.Controller.Regenerate)

	v1.POST("/availability/query", r.Controller.Query)
	v1.GET("/availability/slots/:id", r.Controller.GetSlot)
}
