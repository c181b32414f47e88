package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sgs-clinic/clinic-api/internal/api/middleware"
	"github.com/sgs-clinic/clinic-api/internal/core/domain"
	"github.com/sgs-clinic/clinic-api/internal/core/ports"
)

type stubAppointmentService struct {
	scheduleFn   func(ctx context.Context, input ports.ScheduleInput) (*domain.Appointment, error)
	transitionFn func(ctx context.Context, id string, next domain.AppointmentStatus, reason string) (*domain.Appointment, error)
	getFn        func(ctx context.Context, id string, viewer ports.Viewer) (*domain.Appointment, error)
	listFn       func(ctx context.Context, input ports.ListAppointmentsInput) (*ports.ListAppointmentsResult, error)
}

func (s *stubAppointmentService) CheckAvailability(context.Context, string, time.Time, string) error {
	return nil
}

func (s *stubAppointmentService) Schedule(ctx context.Context, input ports.ScheduleInput) (*domain.Appointment, error) {
	return s.scheduleFn(ctx, input)
}

func (s *stubAppointmentService) Reschedule(context.Context, string, time.Time) (*domain.Appointment, error) {
	return nil, domain.ErrAppointmentNotFound
}

func (s *stubAppointmentService) Transition(ctx context.Context, id string, next domain.AppointmentStatus, reason string) (*domain.Appointment, error) {
	return s.transitionFn(ctx, id, next, reason)
}

func (s *stubAppointmentService) Get(ctx context.Context, id string, viewer ports.Viewer) (*domain.Appointment, error) {
	return s.getFn(ctx, id, viewer)
}

func (s *stubAppointmentService) List(ctx context.Context, input ports.ListAppointmentsInput) (*ports.ListAppointmentsResult, error) {
	return s.listFn(ctx, input)
}

func sampleAppointment() *domain.Appointment {
	start := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
	return &domain.Appointment{
		ID:         "apt-1",
		ProviderID: "dr-house",
		SubjectID:  "patient-1",
		StartTime:  start,
		Status:     domain.StatusScheduled,
		StatusHistory: []domain.StatusChange{
			{Status: domain.StatusScheduled, Timestamp: start},
		},
	}
}

func TestAppointmentHandler_Create(t *testing.T) {
	stub := &stubAppointmentService{
		scheduleFn: func(_ context.Context, input ports.ScheduleInput) (*domain.Appointment, error) {
			if input.ProviderID != "dr-house" || input.SubjectID != "patient-1" {
				t.Fatalf("unexpected input: %+v", input)
			}
			return sampleAppointment(), nil
		},
	}
	handler := NewAppointmentHandler(stub)

	c, rec := newTestContext(t, http.MethodPost, "/v1/appointments",
		`{"provider_id":"dr-house","subject_id":"patient-1","start_time":"2026-03-10T14:00:00Z"}`)
	if err := handler.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["status"] != "SCHEDULED" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestAppointmentHandler_Create_MissingFields(t *testing.T) {
	handler := NewAppointmentHandler(&stubAppointmentService{
		scheduleFn: func(context.Context, ports.ScheduleInput) (*domain.Appointment, error) {
			t.Fatalf("service must not be called")
			return nil, nil
		},
	})

	c, _ := newTestContext(t, http.MethodPost, "/v1/appointments",
		`{"provider_id":"dr-house"}`)
	err := handler.Create(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAppointmentHandler_Create_SlotConflict(t *testing.T) {
	handler := NewAppointmentHandler(&stubAppointmentService{
		scheduleFn: func(context.Context, ports.ScheduleInput) (*domain.Appointment, error) {
			return nil, domain.ErrSlotUnavailable
		},
	})

	c, _ := newTestContext(t, http.MethodPost, "/v1/appointments",
		`{"provider_id":"dr-house","subject_id":"patient-1","start_time":"2026-03-10T14:00:00Z"}`)
	if err := handler.Create(c); !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestAppointmentHandler_Get_ViewerFromContext(t *testing.T) {
	stub := &stubAppointmentService{
		getFn: func(_ context.Context, id string, viewer ports.Viewer) (*domain.Appointment, error) {
			if id != "apt-1" {
				t.Fatalf("unexpected id: %s", id)
			}
			if viewer.AccountID != "acc-1" || viewer.Role != domain.RolePatient {
				t.Fatalf("unexpected viewer: %+v", viewer)
			}
			return sampleAppointment(), nil
		},
	}
	handler := NewAppointmentHandler(stub)

	c, rec := newTestContext(t, http.MethodGet, "/v1/appointments/apt-1", "")
	c.SetParamNames("id")
	c.SetParamValues("apt-1")
	c.Set(middleware.CtxAccountID, "acc-1")
	c.Set(middleware.CtxRole, "PATIENT")

	if err := handler.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAppointmentHandler_Get_MissingIdentity(t *testing.T) {
	handler := NewAppointmentHandler(&stubAppointmentService{})

	c, _ := newTestContext(t, http.MethodGet, "/v1/appointments/apt-1", "")
	c.SetParamNames("id")
	c.SetParamValues("apt-1")

	if err := handler.Get(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAppointmentHandler_List_QueryParams(t *testing.T) {
	stub := &stubAppointmentService{
		listFn: func(_ context.Context, input ports.ListAppointmentsInput) (*ports.ListAppointmentsResult, error) {
			if input.ProviderID != "dr-house" || input.Status != "SCHEDULED" {
				t.Fatalf("unexpected filters: %+v", input)
			}
			if input.Page != 2 || input.Limit != 10 {
				t.Fatalf("unexpected pagination: page=%d limit=%d", input.Page, input.Limit)
			}
			return &ports.ListAppointmentsResult{
				Items: []*domain.Appointment{sampleAppointment()},
				Total: 11, Page: 2, Limit: 10, TotalPages: 2,
			}, nil
		},
	}
	handler := NewAppointmentHandler(stub)

	c, rec := newTestContext(t, http.MethodGet,
		"/v1/appointments?provider_id=dr-house&status=SCHEDULED&page=2&limit=10", "")
	c.Set(middleware.CtxAccountID, "acc-1")
	c.Set(middleware.CtxRole, "MANAGER")

	if err := handler.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	pagination, ok := resp["pagination"].(map[string]any)
	if !ok || pagination["total"] != float64(11) {
		t.Fatalf("unexpected pagination: %+v", resp["pagination"])
	}
}

func TestAppointmentHandler_UpdateStatus(t *testing.T) {
	stub := &stubAppointmentService{
		transitionFn: func(_ context.Context, id string, next domain.AppointmentStatus, reason string) (*domain.Appointment, error) {
			if next != domain.StatusCancelled || reason != "patient request" {
				t.Fatalf("unexpected transition: %s %q", next, reason)
			}
			a := sampleAppointment()
			a.Status = domain.StatusCancelled
			a.CancelReason = reason
			return a, nil
		},
	}
	handler := NewAppointmentHandler(stub)

	c, rec := newTestContext(t, http.MethodPatch, "/v1/appointments/apt-1/status",
		`{"status":"CANCELLED","reason":"patient request"}`)
	c.SetParamNames("id")
	c.SetParamValues("apt-1")

	if err := handler.UpdateStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAppointmentHandler_UpdateStatus_BadStatusValue(t *testing.T) {
	handler := NewAppointmentHandler(&stubAppointmentService{
		transitionFn: func(context.Context, string, domain.AppointmentStatus, string) (*domain.Appointment, error) {
			t.Fatalf("service must not be called")
			return nil, nil
		},
	})

	c, _ := newTestContext(t, http.MethodPatch, "/v1/appointments/apt-1/status",
		`{"status":"DONE"}`)
	c.SetParamNames("id")
	c.SetParamValues("apt-1")

	err := handler.UpdateStatus(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
