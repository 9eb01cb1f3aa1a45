package controller

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/controller"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/availability/dto"
	"go-meeting-core/modules/availability/service"
)

type AvailabilityController struct {
	controller.BaseController
	profiles service.ProfileServiceInterface
	query    *service.QueryEngine
	ledger   *service.SlotLedger
}

func NewAvailabilityController(
	profiles service.ProfileServiceInterface,
	query *service.QueryEngine,
	ledger *service.SlotLedger,
) *AvailabilityController {
	return &AvailabilityController{
		BaseController: controller.NewBaseController(),
		profiles:       profiles,
		query:          query,
		ledger:         ledger,
	}
}

// CreateProfile godoc
// @Summary Create an availability profile
// @Tags availability
// @Accept json
// @Produce json
// @Param request body dto.CreateProfileRequest true "profile"
// @Success 200 {object} controller.SuccessResponse{data=dto.ProfileResponse}
// @Router /api/v1/availability/profiles [post]
func (ctrl *AvailabilityController) CreateProfile(c echo.Context) error {
	var req dto.CreateProfileRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	resp, appErr := ctrl.profiles.CreateProfile(c.Request().Context(), middleware.UserID(c), &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Profile created")
}

// GetProfile godoc
// @Summary Get one availability profile
// @Tags availability
// @Produce json
// @Param id path string true "profile id"
// @Success 200 {object} controller.SuccessResponse{data=dto.ProfileResponse}
// @Router /api/v1/availability/profiles/{id} [get]
func (ctrl *AvailabilityController) GetProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid profile id")
	}

	resp, appErr := ctrl.profiles.GetProfile(c.Request().Context(), id)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}

func (ctrl *AvailabilityController) GetMyProfiles(c echo.Context) error {
	resp, appErr := ctrl.profiles.GetMyProfiles(c.Request().Context(), middleware.UserID(c))
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}

func (ctrl *AvailabilityController) UpdateProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid profile id")
	}

	var req dto.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	resp, appErr := ctrl.profiles.UpdateProfile(c.Request().Context(), id, middleware.UserID(c), &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Profile updated")
}

func (ctrl *AvailabilityController) DeleteProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid profile id")
	}

	if appErr := ctrl.profiles.DeleteProfile(c.Request().Context(), id, middleware.UserID(c)); appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, nil, "Profile deleted")
}

func (ctrl *AvailabilityController) Regenerate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid profile id")
	}

	resp, appErr := ctrl.profiles.Regenerate(c.Request().Context(), id)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Slots regenerated")
}

// Query godoc
// @Summary Query availability for one or more users
// @Tags availability
// @Accept json
// @Produce json
// @Param request body dto.QueryRequest true "query"
// @Success 200 {object} controller.SuccessResponse{data=dto.QueryResponse}
// @Router /api/v1/availability/query [post]
func (ctrl *AvailabilityController) Query(c echo.Context) error {
	var req dto.QueryRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	resp, appErr := ctrl.query.Query(c.Request().Context(), &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}

func (ctrl *AvailabilityController) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid slot id")
	}

	slot, appErr := ctrl.ledger.Get(c.Request().Context(), id)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	view := dto.ToSlotView(slot)
	return ctrl.SuccessResponse(c, view, "OK")
}
