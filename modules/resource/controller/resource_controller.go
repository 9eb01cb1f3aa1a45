package controller

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/controller"
	"go-meeting-core/core/errors"
	"go-meeting-core/modules/resource/dto"
	"go-meeting-core/modules/resource/service"
)

type ResourceController struct {
	controller.BaseController
	service *service.ResourceService
}

func NewResourceController(svc *service.ResourceService) *ResourceController {
	return &ResourceController{
		BaseController: controller.NewBaseController(),
		service:        svc,
	}
}

// CreateResource godoc
// @Summary Add a bookable resource
// @Tags resource
// @Accept json
// @Produce json
// @Param request body dto.CreateResourceRequest true "resource"
// @Success 200 {object} controller.SuccessResponse{data=dto.ResourceResponse}
// @Router /api/v1/resources [post]
func (ctrl *ResourceController) CreateResource(c echo.Context) error {
	var req dto.CreateResourceRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	resp, appErr := ctrl.service.CreateResource(c.Request().Context(), &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Resource created")
}

func (ctrl *ResourceController) ListResources(c echo.Context) error {
	resp, appErr := ctrl.service.ListResources(c.Request().Context())
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}

func (ctrl *ResourceController) UpdateResource(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid resource id")
	}

	var req dto.UpdateResourceRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	resp, appErr := ctrl.service.UpdateResource(c.Request().Context(), id, &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Resource updated")
}

func (ctrl *ResourceController) DeleteResource(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid resource id")
	}

	if appErr := ctrl.service.DeleteResource(c.Request().Context(), id); appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, nil, "Resource deleted")
}
