package ports

import (
	"context"
	"time"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
)

// Viewer identifies the authenticated caller for read scoping. PATIENT
// callers only see appointments whose subject is their own account.
type Viewer struct {
	AccountID string
	Role      domain.Role
}

// ScheduleInput carries all data needed to book an appointment.
type ScheduleInput struct {
	ProviderID string
	SubjectID  string
	StartTime  time.Time
	Notes      string
}

// ListAppointmentsInput carries all parameters for the list endpoint.
type ListAppointmentsInput struct {
	Viewer     Viewer
	ProviderID string
	Status     string
	DateFrom   time.Time
	DateTo     time.Time
	Page       int
	Limit      int
}

// ListAppointmentsResult is returned by List.
type ListAppointmentsResult struct {
	Items      []*domain.Appointment
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// AppointmentService defines the booking use cases guarded by the
// no-double-booking invariant and the status state machine.
type AppointmentService interface {
	// CheckAvailability rejects with domain.ErrSlotUnavailable when the
	// provider already has a non-cancelled appointment inside the
	// ±30-minute window around start. excludeID skips one appointment,
	// used when rescheduling.
	CheckAvailability(ctx context.Context, providerID string, start time.Time, excludeID string) error

	Schedule(ctx context.Context, input ScheduleInput) (*domain.Appointment, error)
	Reschedule(ctx context.Context, id string, newStart time.Time) (*domain.Appointment, error)

	// Transition applies a state machine transition. Any transition into
	// CANCELLED requires a non-empty reason.
	Transition(ctx context.Context, id string, next domain.AppointmentStatus, reason string) (*domain.Appointment, error)

	Get(ctx context.Context, id string, viewer Viewer) (*domain.Appointment, error)
	List(ctx context.Context, input ListAppointmentsInput) (*ListAppointmentsResult, error)
}
