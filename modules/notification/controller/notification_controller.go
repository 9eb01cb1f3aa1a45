package controller

import (
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/controller"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/middleware"
	"go-meeting-core/core/params"
	"go-meeting-core/modules/notification/dto"
	"go-meeting-core/modules/notification/service"
)

type NotificationController struct {
	controller.BaseController
	service *service.NotificationService
}

func NewNotificationController(svc *service.NotificationService) *NotificationController {
	return &NotificationController{
		BaseController: controller.NewBaseController(),
		service:        svc,
	}
}

// ListMyNotifications godoc
// @Summary List the caller's notification feed
// @Tags notification
// @Produce json
// @Param page_number query int false "page number"
// @Param page_size query int false "page size"
// @Success 200 {object} controller.SuccessResponse
// @Router /api/v1/notifications [get]
func (ctrl *NotificationController) ListMyNotifications(c echo.Context) error {
	var qp params.QueryParams
	if err := c.Bind(&qp); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid paging parameters")
	}

	resp, appErr := ctrl.service.ListMyNotifications(c.Request().Context(), middleware.UserID(c), qp)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}

func (ctrl *NotificationController) MarkAsRead(c echo.Context) error {
	var req dto.MarkAsReadRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	if appErr := ctrl.service.MarkAsRead(c.Request().Context(), middleware.UserID(c), req.IDs); appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, nil, "Marked as read")
}

func (ctrl *NotificationController) MarkAllAsRead(c echo.Context) error {
	if appErr := ctrl.service.MarkAllAsRead(c.Request().Context(), middleware.UserID(c)); appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, nil, "Marked all as read")
}

func (ctrl *NotificationController) CountUnread(c echo.Context) error {
	count, appErr := ctrl.service.CountUnread(c.Request().Context(), middleware.UserID(c))
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, dto.UnreadCountResponse{Count: count}, "OK")
}
