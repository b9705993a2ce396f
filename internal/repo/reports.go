package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Report scans return raw grouped counts; all derived figures (percentages,
// buckets, scores) are computed in internal/stats. Each scan runs inside a
// single read-only repeatable-read transaction so one report never mixes
// pre- and post-write counts.

type EventPopularityRow struct {
	EventID             uuid.UUID
	Title               string
	EventType           string
	CollegeName         string
	StartDatetime       time.Time
	MaxCapacity         *int
	TotalRegistrations  int
	ActiveRegistrations int
}

type EventStatsRow struct {
	EventID                uuid.UUID
	Title                  string
	EventType              string
	CollegeName            string
	CollegeCode            string
	StartDatetime          time.Time
	EndDatetime            time.Time
	Location               *string
	MaxCapacity            *int
	Status                 string
	TotalRegistrations     int
	ActiveRegistrations    int
	CancelledRegistrations int
	TotalAttendance        int
	FeedbackCount          int
	AvgRating              *float64
	RatingCounts           [5]int
}

type EventAttendanceRow struct {
	EventID             uuid.UUID
	Title               string
	EventType           string
	CollegeID           uuid.UUID
	CollegeName         string
	ActiveRegistrations int
	AttendedCount       int
}

type EventFeedbackRow struct {
	EventID         uuid.UUID
	Title           string
	EventType       string
	AttendanceCount int
	FeedbackCount   int
	AvgRating       *float64
	RatingCounts    [5]int
}

type StudentActivityRow struct {
	StudentID           uuid.UUID
	Name                string
	Email               string
	CollegeName         string
	TotalRegistrations  int
	ActiveRegistrations int
	EventsAttended      int
	FeedbackGiven       int
}

type CollegePerformanceRow struct {
	CollegeID          uuid.UUID
	Name               string
	Code               string
	TotalEvents        int
	TotalStudents      int
	TotalRegistrations int
	TotalAttendance    int
	FeedbackResponses  int
	AvgRating          *float64
}

type EventTypeRow struct {
	EventType          string
	TotalEvents        int
	TotalRegistrations int
	TotalAttendance    int
	FeedbackResponses  int
	AvgRating          *float64
}

type SystemOverviewRow struct {
	TotalColleges       int
	ActiveEvents        int
	ActiveStudents      int
	ActiveRegistrations int
	TotalRegistrations  int
	AttendanceRecords   int
	FeedbackResponses   int
	OverallAvgRating    *float64
}

type UpcomingEventRow struct {
	EventID             uuid.UUID
	Title               string
	EventType           string
	CollegeName         string
	StartDatetime       time.Time
	MaxCapacity         *int
	ActiveRegistrations int
}

func (r *repository) beginSnapshot(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.Master.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start report snapshot: %w", ErrUnavailable)
	}
	return tx, nil
}

func (r *repository) EventPopularityRows(ctx context.Context) ([]EventPopularityRow, error) {
	tx, err := r.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT e.event_id, e.title, e.event_type, c.name, e.start_datetime, e.max_capacity,
		       COUNT(r.registration_id) AS total_registrations,
		       COUNT(CASE WHEN r.status = 'registered' THEN 1 END) AS active_registrations
		FROM events e
		JOIN colleges c ON e.college_id = c.college_id
		LEFT JOIN registrations r ON e.event_id = r.event_id
		WHERE e.status = 'active'
		GROUP BY e.event_id, c.name
		ORDER BY total_registrations DESC, e.title ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query event popularity: %w", err)
	}
	defer rows.Close()

	var out []EventPopularityRow
	for rows.Next() {
		var row EventPopularityRow
		if err := rows.Scan(
			&row.EventID, &row.Title, &row.EventType, &row.CollegeName, &row.StartDatetime,
			&row.MaxCapacity, &row.TotalRegistrations, &row.ActiveRegistrations,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event popularity row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) EventStatsRow(ctx context.Context, eventID uuid.UUID) (*EventStatsRow, error) {
	tx, err := r.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var row EventStatsRow
	err = tx.QueryRowContext(ctx, `
		SELECT e.event_id, e.title, e.event_type, c.name, c.code,
		       e.start_datetime, e.end_datetime, e.location, e.max_capacity, e.status,
		       COUNT(DISTINCT r.registration_id) AS total_registrations,
		       COUNT(DISTINCT CASE WHEN r.status = 'registered' THEN r.registration_id END) AS active_registrations,
		       COUNT(DISTINCT CASE WHEN r.status = 'cancelled' THEN r.registration_id END) AS cancelled_registrations,
		       COUNT(DISTINCT a.attendance_id) AS total_attendance,
		       COUNT(DISTINCT CASE WHEN a.feedback_rating IS NOT NULL THEN a.attendance_id END) AS feedback_count,
		       AVG(a.feedback_rating) AS avg_rating,
		       COUNT(CASE WHEN a.feedback_rating = 1 THEN 1 END),
		       COUNT(CASE WHEN a.feedback_rating = 2 THEN 1 END),
		       COUNT(CASE WHEN a.feedback_rating = 3 THEN 1 END),
		       COUNT(CASE WHEN a.feedback_rating = 4 THEN 1 END),
		       COUNT(CASE WHEN a.feedback_rating = 5 THEN 1 END)
		FROM events e
		JOIN colleges c ON e.college_id = c.college_id
		LEFT JOIN registrations r ON e.event_id = r.event_id
		LEFT JOIN attendance a ON r.registration_id = a.registration_id
		WHERE e.event_id = $1
		GROUP BY e.event_id, c.name, c.code
	`, eventID).Scan(
		&row.EventID, &row.Title, &row.EventType, &row.CollegeName, &row.CollegeCode,
		&row.StartDatetime, &row.EndDatetime, &row.Location, &row.MaxCapacity, &row.Status,
		&row.TotalRegistrations, &row.ActiveRegistrations, &row.CancelledRegistrations,
		&row.TotalAttendance, &row.FeedbackCount, &row.AvgRating,
		&row.RatingCounts[0], &row.RatingCounts[1], &row.RatingCounts[2],
		&row.RatingCounts[3], &row.RatingCounts[4],
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to query event stats: %w", err)
	}
	return &row, nil
}

func (r *repository) EventAttendanceRows(ctx context.Context) ([]EventAttendanceRow, error) {
	tx, err := r.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT e.event_id, e.title, e.event_type, c.college_id, c.name,
		       COUNT(DISTINCT CASE WHEN r.status = 'registered' THEN r.registration_id END) AS active_registrations,
		       COUNT(DISTINCT a.attendance_id) AS attended_count
		FROM events e
		JOIN colleges c ON e.college_id = c.college_id
		LEFT JOIN registrations r ON e.event_id = r.event_id
		LEFT JOIN attendance a ON r.registration_id = a.registration_id
		WHERE e.status = 'active'
		GROUP BY e.event_id, c.college_id, c.name
		ORDER BY e.start_datetime ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance rows: %w", err)
	}
	defer rows.Close()

	var out []EventAttendanceRow
	for rows.Next() {
		var row EventAttendanceRow
		if err := rows.Scan(
			&row.EventID, &row.Title, &row.EventType, &row.CollegeID, &row.CollegeName,
			&row.ActiveRegistrations, &row.AttendedCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) FeedbackRows(ctx context.Context) ([]EventFeedbackRow, error) {
	tx, err := r.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT e.event_id, e.title, e.event_type,
		       COUNT(DISTINCT a.attendance_id) AS attendance_count,
		       COUNT(DISTINCT CASE WHEN a.feedback_rating IS NOT NULL THEN a.attendance_id END) AS feedback_count,
		       AVG(a.feedback_rating) AS avg_rating,
		       COUNT(CASE WHEN a.feedback_rating = 1 THEN 1 END),
		       COUNT(CASE WHEN a.feedback_rating = 2 THEN 1 END),
		       COUNT(CASE WHEN a.feedback_rating = 3 THEN 1 END),
		       COUNT(CASE WHEN a.feedback_rating = 4 THEN 1 END),
		       COUNT(CASE WHEN a.feedback_rating = 5 THEN 1 END)
		FROM events e
		LEFT JOIN registrations r ON e.event_id = r.event_id
		LEFT JOIN attendance a ON r.registration_id = a.registration_id
		WHERE e.status = 'active'
		GROUP BY e.event_id
		ORDER BY avg_rating DESC NULLS LAST
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback rows: %w", err)
	}
	defer rows.Close()

	var out []EventFeedbackRow
	for rows.Next() {
		var row EventFeedbackRow
		if err := rows.Scan(
			&row.EventID, &row.Title, &row.EventType,
			&row.AttendanceCount, &row.FeedbackCount, &row.AvgRating,
			&row.RatingCounts[0], &row.RatingCounts[1], &row.RatingCounts[2],
			&row.RatingCounts[3], &row.RatingCounts[4],
		); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) StudentActivityRows(ctx context.Context) ([]StudentActivityRow, error) {
	tx, err := r.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT s.student_id, s.name, s.email, c.name,
		       COUNT(DISTINCT r.registration_id) AS total_registrations,
		       COUNT(DISTINCT CASE WHEN r.status = 'registered' THEN r.registration_id END) AS active_registrations,
		       COUNT(DISTINCT a.attendance_id) AS events_attended,
		       COUNT(DISTINCT CASE WHEN a.feedback_rating IS NOT NULL THEN a.attendance_id END) AS feedback_given
		FROM students s
		JOIN colleges c ON s.college_id = c.college_id
		LEFT JOIN registrations r ON s.student_id = r.student_id
		LEFT JOIN attendance a ON r.registration_id = a.registration_id
		WHERE s.is_active = TRUE
		GROUP BY s.student_id, c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query student activity: %w", err)
	}
	defer rows.Close()

	var out []StudentActivityRow
	for rows.Next() {
		var row StudentActivityRow
		if err := rows.Scan(
			&row.StudentID, &row.Name, &row.Email, &row.CollegeName,
			&row.TotalRegistrations, &row.ActiveRegistrations,
			&row.EventsAttended, &row.FeedbackGiven,
		); err != nil {
			return nil, fmt.Errorf("failed to scan student activity row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) CollegePerformanceRows(ctx context.Context) ([]CollegePerformanceRow, error) {
	tx, err := r.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT c.college_id, c.name, c.code,
		       COUNT(DISTINCT e.event_id) AS total_events,
		       COUNT(DISTINCT s.student_id) AS total_students,
		       COUNT(DISTINCT CASE WHEN r.status = 'registered' THEN r.registration_id END) AS total_registrations,
		       COUNT(DISTINCT a.attendance_id) AS total_attendance,
		       COUNT(DISTINCT CASE WHEN a.feedback_rating IS NOT NULL THEN a.attendance_id END) AS feedback_responses,
		       AVG(a.feedback_rating) AS avg_rating
		FROM colleges c
		LEFT JOIN events e ON c.college_id = e.college_id AND e.status = 'active'
		LEFT JOIN students s ON c.college_id = s.college_id AND s.is_active = TRUE
		LEFT JOIN registrations r ON e.event_id = r.event_id
		LEFT JOIN attendance a ON r.registration_id = a.registration_id
		GROUP BY c.college_id
		ORDER BY avg_rating DESC NULLS LAST
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query college performance: %w", err)
	}
	defer rows.Close()

	var out []CollegePerformanceRow
	for rows.Next() {
		var row CollegePerformanceRow
		if err := rows.Scan(
			&row.CollegeID, &row.Name, &row.Code,
			&row.TotalEvents, &row.TotalStudents, &row.TotalRegistrations,
			&row.TotalAttendance, &row.FeedbackResponses, &row.AvgRating,
		); err != nil {
			return nil, fmt.Errorf("failed to scan college performance row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) EventTypeRows(ctx context.Context) ([]EventTypeRow, error) {
	tx, err := r.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT e.event_type,
		       COUNT(DISTINCT e.event_id) AS total_events,
		       COUNT(DISTINCT CASE WHEN r.status = 'registered' THEN r.registration_id END) AS total_registrations,
		       COUNT(DISTINCT a.attendance_id) AS total_attendance,
		       COUNT(DISTINCT CASE WHEN a.feedback_rating IS NOT NULL THEN a.attendance_id END) AS feedback_responses,
		       AVG(a.feedback_rating) AS avg_rating
		FROM events e
		LEFT JOIN registrations r ON e.event_id = r.event_id
		LEFT JOIN attendance a ON r.registration_id = a.registration_id
		WHERE e.status = 'active'
		GROUP BY e.event_type
		ORDER BY avg_rating DESC NULLS LAST
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query event type analytics: %w", err)
	}
	defer rows.Close()

	var out []EventTypeRow
	for rows.Next() {
		var row EventTypeRow
		if err := rows.Scan(
			&row.EventType, &row.TotalEvents, &row.TotalRegistrations,
			&row.TotalAttendance, &row.FeedbackResponses, &row.AvgRating,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event type row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) SystemOverviewRow(ctx context.Context) (*SystemOverviewRow, error) {
	tx, err := r.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var row SystemOverviewRow
	err = tx.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM colleges),
			(SELECT COUNT(*) FROM events WHERE status = 'active'),
			(SELECT COUNT(*) FROM students WHERE is_active = TRUE),
			(SELECT COUNT(*) FROM registrations WHERE status = 'registered'),
			(SELECT COUNT(*) FROM registrations),
			(SELECT COUNT(*) FROM attendance),
			(SELECT COUNT(*) FROM attendance WHERE feedback_rating IS NOT NULL),
			(SELECT AVG(feedback_rating) FROM attendance WHERE feedback_rating IS NOT NULL)
	`).Scan(
		&row.TotalColleges, &row.ActiveEvents, &row.ActiveStudents,
		&row.ActiveRegistrations, &row.TotalRegistrations,
		&row.AttendanceRecords, &row.FeedbackResponses, &row.OverallAvgRating,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query system overview: %w", err)
	}
	return &row, nil
}

func (r *repository) UpcomingEventRows(ctx context.Context) ([]UpcomingEventRow, error) {
	tx, err := r.beginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT e.event_id, e.title, e.event_type, c.name, e.start_datetime, e.max_capacity,
		       COUNT(CASE WHEN r.status = 'registered' THEN 1 END) AS active_registrations
		FROM events e
		JOIN colleges c ON e.college_id = c.college_id
		LEFT JOIN registrations r ON e.event_id = r.event_id
		WHERE e.status = 'active' AND e.start_datetime > NOW()
		GROUP BY e.event_id, c.name
		ORDER BY e.start_datetime ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming events: %w", err)
	}
	defer rows.Close()

	var out []UpcomingEventRow
	for rows.Next() {
		var row UpcomingEventRow
		if err := rows.Scan(
			&row.EventID, &row.Title, &row.EventType, &row.CollegeName,
			&row.StartDatetime, &row.MaxCapacity, &row.ActiveRegistrations,
		); err != nil {
			return nil, fmt.Errorf("failed to scan upcoming event row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
