package controller

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"go-meeting-core/core/controller"
	"go-meeting-core/core/errors"
	"go-meeting-core/core/middleware"
	"go-meeting-core/modules/booking/dto"
	"go-meeting-core/modules/booking/service"
)

type BookingController struct {
	controller.BaseController
	workflows service.WorkflowServiceInterface
	engine    *service.WorkflowEngine
}

func NewBookingController(workflows service.WorkflowServiceInterface, engine *service.WorkflowEngine) *BookingController {
	return &BookingController{
		BaseController: controller.NewBaseController(),
		workflows:      workflows,
		engine:         engine,
	}
}

// ===================== Workflow templates =====================

// CreateWorkflow godoc
// @Summary Create a booking workflow template
// @Tags booking
// @Accept json
// @Produce json
// @Param request body dto.CreateWorkflowRequest true "workflow"
// @Success 200 {object} controller.SuccessResponse{data=dto.WorkflowResponse}
// @Router /api/v1/booking/workflows [post]
func (ctrl *BookingController) CreateWorkflow(c echo.Context) error {
	var req dto.CreateWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	resp, appErr := ctrl.workflows.CreateWorkflow(c.Request().Context(), &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Workflow created")
}

func (ctrl *BookingController) GetWorkflow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid workflow id")
	}

	resp, appErr := ctrl.workflows.GetWorkflow(c.Request().Context(), id)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}

func (ctrl *BookingController) ListWorkflows(c echo.Context) error {
	resp, appErr := ctrl.workflows.ListWorkflows(c.Request().Context())
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}

func (ctrl *BookingController) UpdateWorkflow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid workflow id")
	}

	var req dto.UpdateWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	resp, appErr := ctrl.workflows.UpdateWorkflow(c.Request().Context(), id, &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Workflow updated")
}

func (ctrl *BookingController) DeleteWorkflow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid workflow id")
	}

	if appErr := ctrl.workflows.DeleteWorkflow(c.Request().Context(), id); appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, nil, "Workflow deleted")
}

// ===================== Bookings =====================

// CreateBooking godoc
// @Summary Admit a booking request through a workflow
// @Tags booking
// @Accept json
// @Produce json
// @Param request body dto.CreateBookingRequest true "booking request"
// @Success 200 {object} controller.SuccessResponse{data=dto.BookingResponse}
// @Failure 409 {object} controller.ErrorResponse
// @Router /api/v1/bookings [post]
func (ctrl *BookingController) CreateBooking(c echo.Context) error {
	var req dto.CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	resp, appErr := ctrl.engine.CreateBookingRequest(c.Request().Context(), middleware.UserID(c), &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Booking admitted")
}

func (ctrl *BookingController) GetBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid booking id")
	}

	resp, appErr := ctrl.engine.GetBooking(c.Request().Context(), id)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}

func (ctrl *BookingController) ListMyBookings(c echo.Context) error {
	resp, appErr := ctrl.engine.ListMyBookings(c.Request().Context(), middleware.UserID(c))
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "OK")
}

// ApproveBooking godoc
// @Summary Approve a booking awaiting an approval step
// @Tags booking
// @Accept json
// @Produce json
// @Param id path string true "booking id"
// @Success 200 {object} controller.SuccessResponse{data=dto.BookingResponse}
// @Router /api/v1/bookings/{id}/approve [post]
func (ctrl *BookingController) ApproveBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid booking id")
	}

	var req dto.ApprovalActionRequest
	_ = c.Bind(&req)

	resp, appErr := ctrl.engine.ApproveBooking(c.Request().Context(), id, middleware.UserID(c).String(), req.Comment)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Booking approved")
}

func (ctrl *BookingController) RejectBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid booking id")
	}

	var req dto.ApprovalActionRequest
	_ = c.Bind(&req)

	resp, appErr := ctrl.engine.RejectBooking(c.Request().Context(), id, middleware.UserID(c).String(), req.Comment)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Booking rejected")
}

func (ctrl *BookingController) CancelBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid booking id")
	}

	resp, appErr := ctrl.engine.CancelBooking(c.Request().Context(), id, middleware.UserID(c))
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Booking cancelled")
}

// DecideByToken handles the public approve/decline links mailed to external
// approvers; no authenticated session required.
func (ctrl *BookingController) DecideByToken(c echo.Context) error {
	token := c.Param("token")
	decision := c.Param("decision")
	if token == "" || (decision != "approve" && decision != "decline") {
		return ctrl.BadRequest(errors.ErrInvalidInput, "Invalid approval link")
	}

	var req dto.ApprovalActionRequest
	_ = c.Bind(&req)

	resp, appErr := ctrl.engine.DecideByToken(c.Request().Context(), token, decision == "approve", req.Comment)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}
	return ctrl.SuccessResponse(c, resp, "Decision recorded")
}
