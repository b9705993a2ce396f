package stats

import (
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestPercentage(t *testing.T) {
	cases := []struct {
		name  string
		part  int
		whole int
		want  float64
	}{
		{"zero denominator", 5, 0, 0},
		{"zero part", 0, 10, 0},
		{"half", 1, 2, 50},
		{"rounds to two decimals", 1, 3, 33.33},
		{"over hundred", 3, 2, 150},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Percentage(c.part, c.whole); got != c.want {
				t.Errorf("Percentage(%d, %d) = %v, want %v", c.part, c.whole, got, c.want)
			}
		})
	}
}

func TestCapacityUtilization(t *testing.T) {
	if got := CapacityUtilization(5, nil); got != nil {
		t.Errorf("expected nil utilization for unbounded event, got %v", *got)
	}
	if got := CapacityUtilization(5, intPtr(10)); got == nil || *got != 50 {
		t.Errorf("expected 50, got %v", got)
	}
	// Capacity lowered below registered count: surfaced, not clamped.
	if got := CapacityUtilization(3, intPtr(2)); got == nil || *got != 150 {
		t.Errorf("expected 150, got %v", got)
	}
}

func TestCapacityBucket(t *testing.T) {
	cases := []struct {
		name     string
		active   int
		capacity *int
		want     string
	}{
		{"empty", 0, intPtr(10), BucketNoRegistrations},
		{"empty unbounded", 0, nil, BucketNoRegistrations},
		{"unbounded never full", 1000, nil, BucketAvailable},
		{"full at boundary", 10, intPtr(10), BucketFull},
		{"over capacity", 12, intPtr(10), BucketFull},
		{"nearly full at 80", 8, intPtr(10), BucketNearlyFull},
		{"half full at 50", 5, intPtr(10), BucketHalfFull},
		{"available below 50", 4, intPtr(10), BucketAvailable},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CapacityBucket(c.active, c.capacity); got != c.want {
				t.Errorf("CapacityBucket(%d) = %q, want %q", c.active, got, c.want)
			}
		})
	}
}

func TestRatingBucket(t *testing.T) {
	cases := []struct {
		name string
		avg  *float64
		want string
	}{
		{"no feedback", nil, RatingNoFeedback},
		{"excellent boundary", floatPtr(4.5), RatingExcellent},
		{"very good boundary", floatPtr(4.0), RatingVeryGood},
		{"good", floatPtr(3.7), RatingGood},
		{"average boundary", floatPtr(3.0), RatingAverage},
		{"below average", floatPtr(2.4), RatingBelowAverage},
		{"poor", floatPtr(1.9), RatingPoor},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := RatingBucket(c.avg); got != c.want {
				t.Errorf("RatingBucket = %q, want %q", got, c.want)
			}
		})
	}
}

func TestActivityScore(t *testing.T) {
	// 3 registrations, 2 attendances, 1 feedback: 3*1 + 2*2 + 1*1.5
	if got := ActivityScore(3, 2, 1); got != 8.5 {
		t.Errorf("ActivityScore = %v, want 8.5", got)
	}
	if got := ActivityScore(0, 0, 0); got != 0 {
		t.Errorf("ActivityScore of idle student = %v, want 0", got)
	}
}

func TestActivityLevel(t *testing.T) {
	cases := []struct {
		attended int
		want     string
	}{
		{0, ActivityInactive},
		{1, ActivityModerate},
		{2, ActivityModerate},
		{3, ActivityActive},
		{4, ActivityActive},
		{5, ActivityHigh},
		{10, ActivityHigh},
	}
	for _, c := range cases {
		if got := ActivityLevel(c.attended); got != c.want {
			t.Errorf("ActivityLevel(%d) = %q, want %q", c.attended, got, c.want)
		}
	}
}

func TestRiskLevel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		start    time.Time
		active   int
		capacity *int
		want     string
	}{
		{"soon and underfilled", now.Add(3 * 24 * time.Hour), 2, intPtr(10), RiskHigh},
		{"soon but filling", now.Add(3 * 24 * time.Hour), 4, intPtr(10), RiskMedium},
		{"soon and healthy", now.Add(3 * 24 * time.Hour), 6, intPtr(10), RiskLow},
		{"two weeks out underfilled", now.Add(10 * 24 * time.Hour), 4, intPtr(10), RiskMedium},
		{"far out", now.Add(30 * 24 * time.Hour), 0, intPtr(10), RiskLow},
		{"unbounded with nobody", now.Add(3 * 24 * time.Hour), 0, nil, RiskHigh},
		{"unbounded with anyone", now.Add(3 * 24 * time.Hour), 1, nil, RiskLow},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := RiskLevel(now, c.start, c.active, c.capacity); got != c.want {
				t.Errorf("RiskLevel = %q, want %q", got, c.want)
			}
		})
	}
}

func TestEventPhase(t *testing.T) {
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)

	if got := EventPhase(start.Add(-time.Hour), start, end); got != PhaseUpcoming {
		t.Errorf("before start: got %q", got)
	}
	if got := EventPhase(start.Add(time.Hour), start, end); got != PhaseOngoing {
		t.Errorf("mid event: got %q", got)
	}
	if got := EventPhase(end.Add(time.Hour), start, end); got != PhaseCompleted {
		t.Errorf("after end: got %q", got)
	}
}

func TestAvgRating2(t *testing.T) {
	if got := AvgRating2(nil); got != nil {
		t.Errorf("expected nil, got %v", *got)
	}
	if got := AvgRating2(floatPtr(4.666666)); got == nil || *got != 4.67 {
		t.Errorf("expected 4.67, got %v", got)
	}
}
