package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sgs-clinic/clinic-api/internal/api/metrics"
	"github.com/sgs-clinic/clinic-api/internal/core/domain"
	"github.com/sgs-clinic/clinic-api/internal/core/ports"
)

const maxPageLimit = 100

// SlotReserver abstracts the short-lived slot reservation store (Redis).
// Reservation gives concurrent requests for the same window a fast rejection;
// the storage-level unique index remains the authority.
type SlotReserver interface {
	Reserve(ctx context.Context, providerID string, bucket int64) (bool, error)
	Release(ctx context.Context, providerID string, bucket int64) error
}

// AppointmentService implements booking, rescheduling, and the status state
// machine behind the no-double-booking invariant.
type AppointmentService struct {
	repo     ports.AppointmentRepository
	reserver SlotReserver
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAppointmentService(repo ports.AppointmentRepository, reserver SlotReserver, logger zerolog.Logger) *AppointmentService {
	return &AppointmentService{repo: repo, reserver: reserver, logger: logger, now: time.Now}
}

// CheckAvailability queries the provider's agenda for non-cancelled
// appointments inside the ±30-minute window around start.
func (s *AppointmentService) CheckAvailability(ctx context.Context, providerID string, start time.Time, excludeID string) error {
	from := start.Add(-domain.ConflictWindow)
	to := start.Add(domain.ConflictWindow)

	n, err := s.repo.CountInWindow(ctx, providerID, from, to, excludeID)
	if err != nil {
		return fmt.Errorf("availability check: %w", err)
	}
	if n > 0 {
		metrics.SlotConflictsTotal.WithLabelValues("precheck").Inc()
		return domain.ErrSlotUnavailable
	}
	return nil
}

// Schedule books a new appointment in SCHEDULED state. The flow is
// pre-check, slot reservation, insert; a uniqueness violation on insert is
// still surfaced as a slot conflict because two requests can pass the
// pre-check concurrently.
func (s *AppointmentService) Schedule(ctx context.Context, input ports.ScheduleInput) (*domain.Appointment, error) {
	start := input.StartTime.UTC()

	if err := s.CheckAvailability(ctx, input.ProviderID, start, ""); err != nil {
		return nil, err
	}

	bucket := domain.SlotBucket(start)
	if err := s.reserveSlot(ctx, input.ProviderID, bucket); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	appointment := &domain.Appointment{
		ID:         uuid.NewString(),
		ProviderID: input.ProviderID,
		SubjectID:  input.SubjectID,
		StartTime:  start,
		SlotBucket: bucket,
		Status:     domain.StatusScheduled,
		Notes:      input.Notes,
		StatusHistory: []domain.StatusChange{
			{Status: domain.StatusScheduled, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, appointment); err != nil {
		s.releaseSlot(ctx, input.ProviderID, bucket)
		if errors.Is(err, domain.ErrSlotUnavailable) {
			metrics.SlotConflictsTotal.WithLabelValues("constraint").Inc()
			return nil, domain.ErrSlotUnavailable
		}
		s.logger.Error().Err(err).Str("provider_id", input.ProviderID).Msg("failed to create appointment")
		return nil, err
	}

	metrics.AppointmentsScheduledTotal.Inc()
	s.logger.Info().
		Str("appointment_id", appointment.ID).
		Str("provider_id", appointment.ProviderID).
		Time("start_time", appointment.StartTime).
		Msg("appointment scheduled")

	return appointment, nil
}

// Reschedule moves an existing appointment to a new start time, re-checking
// the window with the appointment itself excluded.
func (s *AppointmentService) Reschedule(ctx context.Context, id string, newStart time.Time) (*domain.Appointment, error) {
	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.Status.Terminal() {
		return nil, fmt.Errorf("reschedule %s appointment: %w", appointment.Status, domain.ErrInvalidTransition)
	}

	start := newStart.UTC()
	if err := s.CheckAvailability(ctx, appointment.ProviderID, start, id); err != nil {
		return nil, err
	}

	bucket := domain.SlotBucket(start)
	if bucket != appointment.SlotBucket {
		if err := s.reserveSlot(ctx, appointment.ProviderID, bucket); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	if err := s.repo.UpdateSchedule(ctx, id, start, now); err != nil {
		if bucket != appointment.SlotBucket {
			s.releaseSlot(ctx, appointment.ProviderID, bucket)
		}
		if errors.Is(err, domain.ErrSlotUnavailable) {
			metrics.SlotConflictsTotal.WithLabelValues("constraint").Inc()
			return nil, domain.ErrSlotUnavailable
		}
		return nil, err
	}

	appointment.StartTime = start
	appointment.SlotBucket = bucket
	appointment.UpdatedAt = now

	s.logger.Info().
		Str("appointment_id", id).
		Time("start_time", start).
		Msg("appointment rescheduled")

	return appointment, nil
}

// Transition applies a state machine transition. Cancellation requires a
// non-empty reason, persisted alongside the status change.
func (s *AppointmentService) Transition(ctx context.Context, id string, next domain.AppointmentStatus, reason string) (*domain.Appointment, error) {
	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if next == domain.StatusCancelled && reason == "" {
		return nil, domain.ErrReasonRequired
	}
	if !appointment.Status.CanTransitionTo(next) {
		return nil, &domain.TransitionError{
			From:    appointment.Status,
			To:      next,
			Allowed: appointment.Status.AllowedTransitions(),
		}
	}

	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, next, reason, now); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", id).Msg("failed to update status")
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(next)).Inc()
	s.logger.Info().
		Str("appointment_id", id).
		Str("from", string(appointment.Status)).
		Str("to", string(next)).
		Msg("appointment status changed")

	appointment.Status = next
	if next == domain.StatusCancelled {
		appointment.CancelReason = reason
	}
	appointment.StatusHistory = append(appointment.StatusHistory, domain.StatusChange{
		Status:    next,
		Timestamp: now,
		Reason:    reason,
	})
	appointment.UpdatedAt = now
	return appointment, nil
}

// Get retrieves an appointment. PATIENT viewers only see their own.
func (s *AppointmentService) Get(ctx context.Context, id string, viewer ports.Viewer) (*domain.Appointment, error) {
	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer.Role == domain.RolePatient && appointment.SubjectID != viewer.AccountID {
		// not-found rather than forbidden: do not confirm the appointment exists
		return nil, domain.ErrAppointmentNotFound
	}
	return appointment, nil
}

// List returns a page of appointments. PATIENT viewers are forcibly scoped to
// their own subject id regardless of requested filters.
func (s *AppointmentService) List(ctx context.Context, input ports.ListAppointmentsInput) (*ports.ListAppointmentsResult, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit < 1 {
		limit = 20
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	filter := ports.ListAppointmentsFilter{
		ProviderID: input.ProviderID,
		Status:     input.Status,
		DateFrom:   input.DateFrom,
		DateTo:     input.DateTo,
		Page:       page,
		Limit:      limit,
	}
	if input.Viewer.Role == domain.RolePatient {
		filter.SubjectID = input.Viewer.AccountID
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &ports.ListAppointmentsResult{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// MarkOverdueNoShows transitions past-due SCHEDULED/CONFIRMED appointments to
// NO_SHOW. Invoked by the background sweep; grace is how long after the start
// time an appointment may remain unattended before it is marked.
func (s *AppointmentService) MarkOverdueNoShows(ctx context.Context, grace time.Duration, limit int64) (int, error) {
	cutoff := s.now().UTC().Add(-grace)
	overdue, err := s.repo.FindOverdue(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, appointment := range overdue {
		if _, err := s.Transition(ctx, appointment.ID, domain.StatusNoShow, ""); err != nil {
			// another writer may have moved it already; skip and continue
			s.logger.Warn().Err(err).Str("appointment_id", appointment.ID).Msg("no-show sweep skipped appointment")
			continue
		}
		marked++
	}
	return marked, nil
}

func (s *AppointmentService) reserveSlot(ctx context.Context, providerID string, bucket int64) error {
	ok, err := s.reserver.Reserve(ctx, providerID, bucket)
	if err != nil {
		// reservation store down: fall through to the storage constraint
		s.logger.Warn().Err(err).Str("provider_id", providerID).Msg("slot reservation unavailable, relying on unique index")
		return nil
	}
	if !ok {
		metrics.SlotConflictsTotal.WithLabelValues("reservation").Inc()
		return domain.ErrSlotUnavailable
	}
	return nil
}

func (s *AppointmentService) releaseSlot(ctx context.Context, providerID string, bucket int64) {
	if err := s.reserver.Release(ctx, providerID, bucket); err != nil {
		s.logger.Warn().Err(err).Str("provider_id", providerID).Msg("failed to release slot reservation")
	}
}
