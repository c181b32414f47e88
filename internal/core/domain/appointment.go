package domain

import "time"

// AppointmentStatus represents the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// ConflictWindow is the buffer applied on both sides of a proposed start time
// when checking a provider's agenda for double-booking.
const ConflictWindow = 30 * time.Minute

// validTransitions defines the allowed state machine transitions.
// COMPLETED and CANCELLED are terminal.
var validTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// ParseAppointmentStatus maps a string to an AppointmentStatus, reporting
// whether it is one of the known states.
func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	switch AppointmentStatus(s) {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return AppointmentStatus(s), true
	}
	return "", false
}

// CanTransitionTo reports whether a transition from the current status to next
// is valid.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the target states reachable from s. Terminal
// states return an empty slice.
func (s AppointmentStatus) AllowedTransitions() []AppointmentStatus {
	return validTransitions[s]
}

// Terminal reports whether the status admits no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// SlotBucket maps a start time to its 30-minute agenda bucket. The bucket is
// part of the storage-level uniqueness constraint that backs the
// no-double-booking invariant under concurrent requests.
func SlotBucket(start time.Time) int64 {
	return start.UTC().Truncate(ConflictWindow).Unix()
}

// StatusChange records a single transition in an appointment's history.
type StatusChange struct {
	Status    AppointmentStatus `json:"status" bson:"status"`
	Timestamp time.Time         `json:"timestamp" bson:"timestamp"`
	Reason    string            `json:"reason,omitempty" bson:"reason,omitempty"`
}

// Appointment is a booked slot on a provider's agenda.
type Appointment struct {
	ID            string            `json:"id" bson:"_id"`
	ProviderID    string            `json:"provider_id" bson:"provider_id"`
	SubjectID     string            `json:"subject_id" bson:"subject_id"`
	StartTime     time.Time         `json:"start_time" bson:"start_time"`
	SlotBucket    int64             `json:"-" bson:"slot_bucket"`
	Status        AppointmentStatus `json:"status" bson:"status"`
	Notes         string            `json:"notes,omitempty" bson:"notes,omitempty"`
	CancelReason  string            `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	StatusHistory []StatusChange    `json:"status_history" bson:"status_history"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" bson:"updated_at"`
}
