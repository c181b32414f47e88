package ports

import (
	"context"
	"time"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
)

// ListAppointmentsFilter carries all query parameters for listing appointments.
// SubjectID is enforced by the service layer for PATIENT callers.
type ListAppointmentsFilter struct {
	ProviderID string    // optional: scope to one provider's agenda
	SubjectID  string    // empty = no filter; non-empty = scoped to subject
	Status     string    // optional: filter by appointment status
	DateFrom   time.Time // optional: start_time >= DateFrom
	DateTo     time.Time // optional: start_time <= DateTo
	Page       int       // 1-based
	Limit      int       // max rows per page (capped at 100 by service)
}

// AppointmentRepository defines persistence operations for appointments.
// Create must surface a storage-level uniqueness violation on
// (provider_id, slot_bucket) as domain.ErrSlotUnavailable, which closes the
// check-then-insert race the application-level pre-check leaves open.
type AppointmentRepository interface {
	Create(ctx context.Context, a *domain.Appointment) error
	FindByID(ctx context.Context, id string) (*domain.Appointment, error)

	// CountInWindow counts non-cancelled appointments for the provider whose
	// start time falls inside [from, to], optionally excluding one id.
	CountInWindow(ctx context.Context, providerID string, from, to time.Time, excludeID string) (int64, error)

	// UpdateStatus atomically sets the new status, the cancel reason when
	// present, and appends a history entry.
	UpdateStatus(ctx context.Context, id string, status domain.AppointmentStatus, reason string, at time.Time) error

	// UpdateSchedule moves an appointment to a new start time and slot bucket.
	UpdateSchedule(ctx context.Context, id string, start time.Time, at time.Time) error

	// FindOverdue returns non-terminal appointments whose start time passed
	// before the given instant, up to limit rows.
	FindOverdue(ctx context.Context, before time.Time, limit int64) ([]*domain.Appointment, error)

	// List returns a page of appointments matching filter and the total count.
	List(ctx context.Context, filter ListAppointmentsFilter) ([]*domain.Appointment, int64, error)
}
