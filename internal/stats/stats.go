// Package stats derives read-side report figures from raw ledger counts.
// Everything here is a pure function of its inputs; nothing mutates storage.
package stats

import (
	"math"
	"time"
)

const (
	BucketNoRegistrations = "No Registrations"
	BucketFull            = "Full"
	BucketNearlyFull      = "Nearly Full"
	BucketHalfFull        = "Half Full"
	BucketAvailable       = "Available"

	RatingExcellent    = "Excellent"
	RatingVeryGood     = "Very Good"
	RatingGood         = "Good"
	RatingAverage      = "Average"
	RatingBelowAverage = "Below Average"
	RatingPoor         = "Poor"
	RatingNoFeedback   = "No Feedback"

	RiskHigh   = "High Risk"
	RiskMedium = "Medium Risk"
	RiskLow    = "Low Risk"

	PhaseUpcoming  = "upcoming"
	PhaseOngoing   = "ongoing"
	PhaseCompleted = "completed"

	ActivityHigh     = "highly_active"
	ActivityActive   = "active"
	ActivityModerate = "moderately_active"
	ActivityInactive = "inactive"
)

// Activity score weights.
const (
	weightRegistration = 1.0
	weightAttendance   = 2.0
	weightFeedback     = 1.5
)

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percentage returns part/whole as a percentage rounded to two decimals.
// A zero denominator yields 0, never an error or NaN.
func Percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return Round2(float64(part) / float64(whole) * 100)
}

// CapacityUtilization is active/capacity as a percentage, nil when the event
// is unbounded. The ratio may exceed 100 when capacity was lowered below the
// registered count; that is surfaced, not clamped.
func CapacityUtilization(active int, capacity *int) *float64 {
	if capacity == nil || *capacity <= 0 {
		return nil
	}
	u := Round2(float64(active) / float64(*capacity) * 100)
	return &u
}

// CapacityBucket labels an event's fill level. Boundaries are inclusive on
// the higher bucket. Events without a capacity can only ever be
// "No Registrations" or "Available".
func CapacityBucket(active int, capacity *int) string {
	if active == 0 {
		return BucketNoRegistrations
	}
	util := CapacityUtilization(active, capacity)
	if util == nil {
		return BucketAvailable
	}
	switch {
	case *util >= 100:
		return BucketFull
	case *util >= 80:
		return BucketNearlyFull
	case *util >= 50:
		return BucketHalfFull
	default:
		return BucketAvailable
	}
}

// RatingBucket maps an average rating to its qualitative label. Boundary
// values resolve to the higher bucket.
func RatingBucket(avg *float64) string {
	if avg == nil {
		return RatingNoFeedback
	}
	switch {
	case *avg >= 4.5:
		return RatingExcellent
	case *avg >= 4.0:
		return RatingVeryGood
	case *avg >= 3.5:
		return RatingGood
	case *avg >= 3.0:
		return RatingAverage
	case *avg >= 2.0:
		return RatingBelowAverage
	default:
		return RatingPoor
	}
}

// ActivityScore is the weighted participation sum used for student rankings.
func ActivityScore(registrations, attendances, feedbackGiven int) float64 {
	return Round2(float64(registrations)*weightRegistration +
		float64(attendances)*weightAttendance +
		float64(feedbackGiven)*weightFeedback)
}

// ActivityLevel buckets a student by events attended.
func ActivityLevel(attended int) string {
	switch {
	case attended >= 5:
		return ActivityHigh
	case attended >= 3:
		return ActivityActive
	case attended >= 1:
		return ActivityModerate
	default:
		return ActivityInactive
	}
}

// RiskLevel flags upcoming events that are close to starting and underfilled.
// Advisory only; it never blocks admission. Unbounded events are High Risk
// within a week of start only when nobody has registered.
func RiskLevel(now, start time.Time, active int, capacity *int) string {
	until := start.Sub(now)
	if capacity == nil || *capacity <= 0 {
		if until <= 7*24*time.Hour && active == 0 {
			return RiskHigh
		}
		return RiskLow
	}
	fill := float64(active) / float64(*capacity) * 100
	switch {
	case until <= 7*24*time.Hour && fill < 30:
		return RiskHigh
	case until <= 14*24*time.Hour && fill < 50:
		return RiskMedium
	default:
		return RiskLow
	}
}

// EventPhase derives upcoming/ongoing/completed from the event window.
func EventPhase(now, start, end time.Time) string {
	switch {
	case now.Before(start):
		return PhaseUpcoming
	case now.After(end):
		return PhaseCompleted
	default:
		return PhaseOngoing
	}
}

// AvgRating2 rounds a nullable average to two decimals.
func AvgRating2(avg *float64) *float64 {
	if avg == nil {
		return nil
	}
	r := Round2(*avg)
	return &r
}
