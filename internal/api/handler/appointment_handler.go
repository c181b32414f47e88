package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
	"github.com/sgs-clinic/clinic-api/internal/core/ports"
)

// AppointmentHandler handles HTTP requests for appointment operations.
type AppointmentHandler struct {
	service ports.AppointmentService
}

func NewAppointmentHandler(service ports.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

// Create books a new appointment.
//
// @Summary      Book an appointment
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createAppointmentRequest  true  "Appointment details"
// @Success      201   {object}  appointmentResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/appointments [post]
func (h *AppointmentHandler) Create(c echo.Context) error {
	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appointment, err := h.service.Schedule(c.Request().Context(), ports.ScheduleInput{
		ProviderID: req.ProviderID,
		SubjectID:  req.SubjectID,
		StartTime:  req.StartTime,
		Notes:      req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toAppointmentResponse(appointment))
}

// Get fetches a single appointment. Patients only see their own.
//
// @Summary      Get an appointment
// @Tags         appointments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Appointment id"
// @Success      200  {object}  appointmentResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/appointments/{id} [get]
func (h *AppointmentHandler) Get(c echo.Context) error {
	viewer, err := ctxViewer(c)
	if err != nil {
		return err
	}
	appointment, err := h.service.Get(c.Request().Context(), c.Param("id"), viewer)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAppointmentResponse(appointment))
}

// List returns a page of appointments with optional filters.
//
// @Summary      List appointments
// @Tags         appointments
// @Produce      json
// @Security     BearerAuth
// @Param        provider_id  query     string  false  "Filter by provider"
// @Param        status       query     string  false  "Filter by status"
// @Param        date_from    query     string  false  "RFC 3339 lower bound on start time"
// @Param        date_to      query     string  false  "RFC 3339 upper bound on start time"
// @Param        page         query     int     false  "Page number (1-based)"
// @Param        limit        query     int     false  "Page size (max 100)"
// @Success      200  {object}  listAppointmentsResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/appointments [get]
func (h *AppointmentHandler) List(c echo.Context) error {
	viewer, err := ctxViewer(c)
	if err != nil {
		return err
	}

	input := ports.ListAppointmentsInput{
		Viewer:     viewer,
		ProviderID: c.QueryParam("provider_id"),
		Status:     c.QueryParam("status"),
	}
	if v := c.QueryParam("date_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date_from must be RFC 3339")
		}
		input.DateFrom = t
	}
	if v := c.QueryParam("date_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date_to must be RFC 3339")
		}
		input.DateTo = t
	}
	input.Page = intQueryParam(c, "page")
	input.Limit = intQueryParam(c, "limit")

	result, err := h.service.List(c.Request().Context(), input)
	if err != nil {
		return err
	}

	data := make([]appointmentResponse, 0, len(result.Items))
	for _, a := range result.Items {
		data = append(data, toAppointmentResponse(a))
	}
	return c.JSON(http.StatusOK, listAppointmentsResponse{
		Data: data,
		Pagination: paginationResponse{
			Total:      result.Total,
			Page:       result.Page,
			Limit:      result.Limit,
			TotalPages: result.TotalPages,
		},
	})
}

// Reschedule moves an appointment to a new start time.
//
// @Summary      Reschedule an appointment
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Appointment id"
// @Param        body  body      rescheduleRequest  true  "New start time"
// @Success      200   {object}  appointmentResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/appointments/{id}/reschedule [put]
func (h *AppointmentHandler) Reschedule(c echo.Context) error {
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appointment, err := h.service.Reschedule(c.Request().Context(), c.Param("id"), req.StartTime)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAppointmentResponse(appointment))
}

// UpdateStatus applies a state machine transition.
//
// @Summary      Change appointment status
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                   true  "Appointment id"
// @Param        body  body      statusTransitionRequest  true  "Target status and optional reason"
// @Success      200   {object}  appointmentResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/appointments/{id}/status [patch]
func (h *AppointmentHandler) UpdateStatus(c echo.Context) error {
	var req statusTransitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	status, ok := domain.ParseAppointmentStatus(req.Status)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}

	appointment, err := h.service.Transition(c.Request().Context(), c.Param("id"), status, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAppointmentResponse(appointment))
}

func intQueryParam(c echo.Context, name string) int {
	v := c.QueryParam(name)
	if v == "" {
		return 0
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func toAppointmentResponse(a *domain.Appointment) appointmentResponse {
	history := make([]statusChangeResponse, 0, len(a.StatusHistory))
	for _, h := range a.StatusHistory {
		history = append(history, statusChangeResponse{
			Status:    string(h.Status),
			Timestamp: h.Timestamp,
			Reason:    h.Reason,
		})
	}
	return appointmentResponse{
		ID:            a.ID,
		ProviderID:    a.ProviderID,
		SubjectID:     a.SubjectID,
		StartTime:     a.StartTime,
		Status:        string(a.Status),
		Notes:         a.Notes,
		CancelReason:  a.CancelReason,
		StatusHistory: history,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}
