// Package metric exposes Prometheus counters for the participation ledger.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusevents_registrations_total",
		Help: "Successful event registrations.",
	})

	RegistrationRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusevents_registration_rejections_total",
		Help: "Registrations rejected by an admission guard.",
	}, []string{"reason"})

	CancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusevents_cancellations_total",
		Help: "Registrations cancelled by students.",
	})

	CheckInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusevents_checkins_total",
		Help: "Successful attendance check-ins.",
	}, []string{"method"})

	FeedbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusevents_feedback_total",
		Help: "Feedback submissions recorded.",
	})
)

// Rejection reason labels.
const (
	ReasonCapacity  = "capacity"
	ReasonDeadline  = "deadline"
	ReasonDuplicate = "duplicate"
	ReasonInactive  = "event_inactive"
)
