package stats

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"campusevents/internal/repo"
)

type EventPopularity struct {
	EventID             uuid.UUID `json:"event_id"`
	Title               string    `json:"title"`
	EventType           string    `json:"event_type"`
	CollegeName         string    `json:"college_name"`
	StartDatetime       time.Time `json:"start_datetime"`
	MaxCapacity         *int      `json:"max_capacity,omitempty"`
	TotalRegistrations  int       `json:"total_registrations"`
	ActiveRegistrations int       `json:"active_registrations"`
	CapacityUtilization *float64  `json:"capacity_utilization,omitempty"`
	RegistrationStatus  string    `json:"registration_status"`
}

type EventStats struct {
	EventID                uuid.UUID `json:"event_id"`
	Title                  string    `json:"title"`
	EventType              string    `json:"event_type"`
	CollegeName            string    `json:"college_name"`
	CollegeCode            string    `json:"college_code"`
	StartDatetime          time.Time `json:"start_datetime"`
	EndDatetime            time.Time `json:"end_datetime"`
	Location               *string   `json:"location,omitempty"`
	MaxCapacity            *int      `json:"max_capacity,omitempty"`
	Status                 string    `json:"status"`
	EventPhase             string    `json:"event_phase"`
	TotalRegistrations     int       `json:"total_registrations"`
	ActiveRegistrations    int       `json:"active_registrations"`
	CancelledRegistrations int       `json:"cancelled_registrations"`
	TotalAttendance        int       `json:"total_attendance"`
	AttendancePercentage   float64   `json:"attendance_percentage"`
	CapacityUtilization    *float64  `json:"capacity_utilization,omitempty"`
	RegistrationStatus     string    `json:"registration_status"`
	FeedbackCount          int       `json:"feedback_count"`
	FeedbackResponseRate   float64   `json:"feedback_response_rate"`
	AvgRating              *float64  `json:"avg_rating,omitempty"`
	RatingBucket           string    `json:"rating_bucket"`
	RatingDistribution     [5]int    `json:"rating_distribution"`
}

type AttendanceReport struct {
	EventID              uuid.UUID `json:"event_id"`
	Title                string    `json:"title"`
	EventType            string    `json:"event_type"`
	CollegeName          string    `json:"college_name"`
	ActiveRegistrations  int       `json:"active_registrations"`
	AttendedCount        int       `json:"attended_count"`
	AttendancePercentage float64   `json:"attendance_percentage"`
}

type FeedbackReport struct {
	EventID              uuid.UUID `json:"event_id"`
	Title                string    `json:"title"`
	EventType            string    `json:"event_type"`
	AttendanceCount      int       `json:"attendance_count"`
	FeedbackCount        int       `json:"feedback_count"`
	FeedbackResponseRate float64   `json:"feedback_response_rate"`
	AvgRating            *float64  `json:"avg_rating,omitempty"`
	RatingBucket         string    `json:"rating_bucket"`
	RatingDistribution   [5]int    `json:"rating_distribution"`
}

type StudentActivity struct {
	StudentID          uuid.UUID `json:"student_id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	CollegeName        string    `json:"college_name"`
	TotalRegistrations int       `json:"total_registrations"`
	EventsAttended     int       `json:"events_attended"`
	FeedbackGiven      int       `json:"feedback_given"`
	ActivityScore      float64   `json:"activity_score"`
	ActivityLevel      string    `json:"activity_level"`
	Rank               int       `json:"rank"`
}

type CollegePerformance struct {
	CollegeID            uuid.UUID `json:"college_id"`
	Name                 string    `json:"college_name"`
	Code                 string    `json:"college_code"`
	TotalEvents          int       `json:"total_events"`
	TotalStudents        int       `json:"total_students"`
	TotalRegistrations   int       `json:"total_registrations"`
	TotalAttendance      int       `json:"total_attendance"`
	AttendancePercentage float64   `json:"attendance_percentage"`
	FeedbackResponses    int       `json:"feedback_responses"`
	AvgRating            *float64  `json:"avg_rating,omitempty"`
}

type EventTypeAnalytics struct {
	EventType            string   `json:"event_type"`
	TotalEvents          int      `json:"total_events"`
	TotalRegistrations   int      `json:"total_registrations"`
	TotalAttendance      int      `json:"total_attendance"`
	AttendancePercentage float64  `json:"attendance_percentage"`
	FeedbackResponses    int      `json:"feedback_responses"`
	AvgRating            *float64 `json:"avg_rating,omitempty"`
	RatingBucket         string   `json:"rating_bucket"`
}

type SystemOverview struct {
	TotalColleges       int      `json:"total_colleges"`
	ActiveEvents        int      `json:"total_active_events"`
	ActiveStudents      int      `json:"total_active_students"`
	ActiveRegistrations int      `json:"total_active_registrations"`
	TotalRegistrations  int      `json:"total_registrations"`
	AttendanceRecords   int      `json:"total_attendance_records"`
	FeedbackResponses   int      `json:"total_feedback_responses"`
	OverallAvgRating    *float64 `json:"overall_avg_rating,omitempty"`
}

type EventRisk struct {
	EventID             uuid.UUID `json:"event_id"`
	Title               string    `json:"title"`
	EventType           string    `json:"event_type"`
	CollegeName         string    `json:"college_name"`
	StartDatetime       time.Time `json:"start_datetime"`
	DaysUntilStart      int       `json:"days_until_start"`
	MaxCapacity         *int      `json:"max_capacity,omitempty"`
	ActiveRegistrations int       `json:"active_registrations"`
	CapacityUtilization *float64  `json:"capacity_utilization,omitempty"`
	RiskLevel           string    `json:"risk_level"`
}

func BuildEventPopularity(rows []repo.EventPopularityRow) []EventPopularity {
	out := make([]EventPopularity, 0, len(rows))
	for _, r := range rows {
		out = append(out, EventPopularity{
			EventID:             r.EventID,
			Title:               r.Title,
			EventType:           r.EventType,
			CollegeName:         r.CollegeName,
			StartDatetime:       r.StartDatetime,
			MaxCapacity:         r.MaxCapacity,
			TotalRegistrations:  r.TotalRegistrations,
			ActiveRegistrations: r.ActiveRegistrations,
			CapacityUtilization: CapacityUtilization(r.ActiveRegistrations, r.MaxCapacity),
			RegistrationStatus:  CapacityBucket(r.ActiveRegistrations, r.MaxCapacity),
		})
	}
	return out
}

func BuildEventStats(now time.Time, r *repo.EventStatsRow) *EventStats {
	avg := AvgRating2(r.AvgRating)
	return &EventStats{
		EventID:                r.EventID,
		Title:                  r.Title,
		EventType:              r.EventType,
		CollegeName:            r.CollegeName,
		CollegeCode:            r.CollegeCode,
		StartDatetime:          r.StartDatetime,
		EndDatetime:            r.EndDatetime,
		Location:               r.Location,
		MaxCapacity:            r.MaxCapacity,
		Status:                 r.Status,
		EventPhase:             EventPhase(now, r.StartDatetime, r.EndDatetime),
		TotalRegistrations:     r.TotalRegistrations,
		ActiveRegistrations:    r.ActiveRegistrations,
		CancelledRegistrations: r.CancelledRegistrations,
		TotalAttendance:        r.TotalAttendance,
		AttendancePercentage:   Percentage(r.TotalAttendance, r.ActiveRegistrations),
		CapacityUtilization:    CapacityUtilization(r.ActiveRegistrations, r.MaxCapacity),
		RegistrationStatus:     CapacityBucket(r.ActiveRegistrations, r.MaxCapacity),
		FeedbackCount:          r.FeedbackCount,
		FeedbackResponseRate:   Percentage(r.FeedbackCount, r.TotalAttendance),
		AvgRating:              avg,
		RatingBucket:           RatingBucket(avg),
		RatingDistribution:     r.RatingCounts,
	}
}

func BuildAttendanceReport(rows []repo.EventAttendanceRow) []AttendanceReport {
	out := make([]AttendanceReport, 0, len(rows))
	for _, r := range rows {
		out = append(out, AttendanceReport{
			EventID:              r.EventID,
			Title:                r.Title,
			EventType:            r.EventType,
			CollegeName:          r.CollegeName,
			ActiveRegistrations:  r.ActiveRegistrations,
			AttendedCount:        r.AttendedCount,
			AttendancePercentage: Percentage(r.AttendedCount, r.ActiveRegistrations),
		})
	}
	return out
}

func BuildFeedbackReport(rows []repo.EventFeedbackRow) []FeedbackReport {
	out := make([]FeedbackReport, 0, len(rows))
	for _, r := range rows {
		avg := AvgRating2(r.AvgRating)
		out = append(out, FeedbackReport{
			EventID:              r.EventID,
			Title:                r.Title,
			EventType:            r.EventType,
			AttendanceCount:      r.AttendanceCount,
			FeedbackCount:        r.FeedbackCount,
			FeedbackResponseRate: Percentage(r.FeedbackCount, r.AttendanceCount),
			AvgRating:            avg,
			RatingBucket:         RatingBucket(avg),
			RatingDistribution:   r.RatingCounts,
		})
	}
	return out
}

// BuildTopStudents ranks students by activity score, ties broken by events
// attended then by name ascending for a deterministic order. limit <= 0 means
// no truncation.
func BuildTopStudents(rows []repo.StudentActivityRow, limit int) []StudentActivity {
	out := make([]StudentActivity, 0, len(rows))
	for _, r := range rows {
		out = append(out, StudentActivity{
			StudentID:          r.StudentID,
			Name:               r.Name,
			Email:              r.Email,
			CollegeName:        r.CollegeName,
			TotalRegistrations: r.TotalRegistrations,
			EventsAttended:     r.EventsAttended,
			FeedbackGiven:      r.FeedbackGiven,
			ActivityScore:      ActivityScore(r.TotalRegistrations, r.EventsAttended, r.FeedbackGiven),
			ActivityLevel:      ActivityLevel(r.EventsAttended),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ActivityScore != out[j].ActivityScore {
			return out[i].ActivityScore > out[j].ActivityScore
		}
		if out[i].EventsAttended != out[j].EventsAttended {
			return out[i].EventsAttended > out[j].EventsAttended
		}
		return out[i].Name < out[j].Name
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func BuildCollegePerformance(rows []repo.CollegePerformanceRow) []CollegePerformance {
	out := make([]CollegePerformance, 0, len(rows))
	for _, r := range rows {
		out = append(out, CollegePerformance{
			CollegeID:            r.CollegeID,
			Name:                 r.Name,
			Code:                 r.Code,
			TotalEvents:          r.TotalEvents,
			TotalStudents:        r.TotalStudents,
			TotalRegistrations:   r.TotalRegistrations,
			TotalAttendance:      r.TotalAttendance,
			AttendancePercentage: Percentage(r.TotalAttendance, r.TotalRegistrations),
			FeedbackResponses:    r.FeedbackResponses,
			AvgRating:            AvgRating2(r.AvgRating),
		})
	}
	return out
}

func BuildEventTypeAnalytics(rows []repo.EventTypeRow) []EventTypeAnalytics {
	out := make([]EventTypeAnalytics, 0, len(rows))
	for _, r := range rows {
		avg := AvgRating2(r.AvgRating)
		out = append(out, EventTypeAnalytics{
			EventType:            r.EventType,
			TotalEvents:          r.TotalEvents,
			TotalRegistrations:   r.TotalRegistrations,
			TotalAttendance:      r.TotalAttendance,
			AttendancePercentage: Percentage(r.TotalAttendance, r.TotalRegistrations),
			FeedbackResponses:    r.FeedbackResponses,
			AvgRating:            avg,
			RatingBucket:         RatingBucket(avg),
		})
	}
	return out
}

func BuildSystemOverview(r *repo.SystemOverviewRow) *SystemOverview {
	return &SystemOverview{
		TotalColleges:       r.TotalColleges,
		ActiveEvents:        r.ActiveEvents,
		ActiveStudents:      r.ActiveStudents,
		ActiveRegistrations: r.ActiveRegistrations,
		TotalRegistrations:  r.TotalRegistrations,
		AttendanceRecords:   r.AttendanceRecords,
		FeedbackResponses:   r.FeedbackResponses,
		OverallAvgRating:    AvgRating2(r.OverallAvgRating),
	}
}

func BuildEventRisk(now time.Time, rows []repo.UpcomingEventRow) []EventRisk {
	out := make([]EventRisk, 0, len(rows))
	for _, r := range rows {
		out = append(out, EventRisk{
			EventID:             r.EventID,
			Title:               r.Title,
			EventType:           r.EventType,
			CollegeName:         r.CollegeName,
			StartDatetime:       r.StartDatetime,
			DaysUntilStart:      int(r.StartDatetime.Sub(now).Hours() / 24),
			MaxCapacity:         r.MaxCapacity,
			ActiveRegistrations: r.ActiveRegistrations,
			CapacityUtilization: CapacityUtilization(r.ActiveRegistrations, r.MaxCapacity),
			RiskLevel:           RiskLevel(now, r.StartDatetime, r.ActiveRegistrations, r.MaxCapacity),
		})
	}
	return out
}
