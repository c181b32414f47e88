// Package metrics defines and registers all custom Prometheus metrics for the
// SGS clinic API. It is the single source of truth for metric names, labels,
// and help strings. Metrics register with the default registry at package
// init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sgs"

// ── Authentication metrics ────────────────────────────────────────────────────

// LoginsTotal counts login attempts by mode and outcome.
// Labels:
//   - mode: "STAFF" or "PATIENT"
//   - outcome: "success", "invalid", "inactive", "locked", "locked_now"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by mode and outcome.",
	},
	[]string{"mode", "outcome"},
)

// LockoutsTotal counts accounts entering the lockout cooldown.
var LockoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lockouts_total",
		Help:      "Total number of account lockouts triggered by repeated failures.",
	},
)

// ── Scheduling metrics ────────────────────────────────────────────────────────

// AppointmentsScheduledTotal counts successfully booked appointments.
var AppointmentsScheduledTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "appointments_scheduled_total",
		Help:      "Total number of appointments booked.",
	},
)

// SlotConflictsTotal counts rejected bookings by the stage that caught the
// conflict.
// Label:
//   - stage: "precheck" (window query), "reservation" (Redis slot lock),
//     "constraint" (storage unique index)
var SlotConflictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slot_conflicts_total",
		Help:      "Total number of booking attempts rejected as double-booking, by detection stage.",
	},
	[]string{"stage"},
)

// TransitionsTotal counts appointment status transitions by target state.
var TransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "appointment_transitions_total",
		Help:      "Total number of appointment status transitions, by target status.",
	},
	[]string{"to"},
)
