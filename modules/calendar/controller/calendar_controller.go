package controller

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/controller"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/calendar/dto"
	"go-meeting-core/modules/calendar/entity"
	"go-meeting-core/modules/calendar/service"
)

type CalendarController struct {
	controller.BaseController
	coordinator *service.SyncCoordinator
}

func NewCalendarController(coordinator *service.SyncCoordinator) *CalendarController {
	return &CalendarController{
		BaseController: controller.NewBaseController(),
		coordinator:    coordinator,
	}
}

// CreateConnection godoc
// @Summary Connect an external calendar account
// @Tags calendar
// @Accept json
// @Produce json
// @Param request body dto.CreateConnectionRequest true "connection"
// @Success 200 {object} controller.SuccessResponse{data=dto.ConnectionResponse}
// @Router /api/v1/calendar/connections [post]
func (ctrl *CalendarController) CreateConnection(c echo.Context) error {
	var req dto.CreateConnectionRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	resp, appErr := ctrl.coordinator.CreateConnection(c.Request().Context(), middleware.UserID(c), &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Connection created")
}

func (ctrl *CalendarController) ListConnections(c echo.Context) error {
	resp, appErr := ctrl.coordinator.ListConnections(c.Request().Context(), middleware.UserID(c))
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}

func (ctrl *CalendarController) UpdateSettings(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid connection id")
	}

	var req dto.UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	resp, appErr := ctrl.coordinator.UpdateSettings(c.Request().Context(), id, middleware.UserID(c), &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Settings updated")
}

func (ctrl *CalendarController) DeleteConnection(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid connection id")
	}

	if appErr := ctrl.coordinator.DeleteConnection(c.Request().Context(), id, middleware.UserID(c)); appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, nil, "Connection deleted")
}

// TriggerSync godoc
// @Summary Start a sync run for a connection
// @Tags calendar
// @Accept json
// @Produce json
// @Param id path string true "connection id"
// @Param request body dto.RunSyncRequest true "sync options"
// @Success 200 {object} controller.SuccessResponse{data=dto.SyncResponse}
// @Router /api/v1/calendar/connections/{id}/sync [post]
func (ctrl *CalendarController) TriggerSync(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid connection id")
	}

	var req dto.RunSyncRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}
	mode := entity.SyncMode(req.Mode)
	if mode != entity.SyncFull {
		mode = entity.SyncIncremental
	}

	resp, appErr := ctrl.coordinator.TriggerSync(c.Request().Context(), id, middleware.UserID(c), mode)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Sync scheduled")
}

func (ctrl *CalendarController) GetSync(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid sync id")
	}

	resp, appErr := ctrl.coordinator.GetSync(c.Request().Context(), id)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}

// DayAvailability godoc
// @Summary Day availability derived from synced calendars
// @Tags calendar
// @Produce json
// @Param date query string true "day, YYYY-MM-DD"
// @Param business_hours query bool false "restrict to business hours"
// @Success 200 {object} controller.SuccessResponse{data=dto.DayAvailabilityResponse}
// @Router /api/v1/calendar/day-availability [get]
func (ctrl *CalendarController) DayAvailability(c echo.Context) error {
	date := c.QueryParam("date")
	businessHours := c.QueryParam("business_hours") == "true"

	resp, appErr := ctrl.coordinator.DayAvailability(c.Request().Context(), middleware.UserID(c), date, businessHours)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}
