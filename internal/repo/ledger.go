package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"campusevents/internal/model"
)

// RegisterTx admits a student into an event. The event row is locked for the
// whole transaction so the capacity count and the insert are one atomic unit:
// two callers racing for the last seat serialize on the row lock and the
// second one observes the first one's insert.
//
// Preconditions are checked in order, each with its own sentinel: event active,
// deadline not passed, capacity not exhausted, no non-cancelled registration
// for the (event, student) pair.
func (r *repository) RegisterTx(ctx context.Context, eventID, studentID uuid.UUID) (*model.Registration, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", ErrUnavailable)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var (
		status      string
		maxCapacity *int
		deadline    *time.Time
	)
	err = tx.QueryRowContext(ctx, `
		SELECT status, max_capacity, registration_deadline
		FROM events
		WHERE event_id = $1
		FOR UPDATE
	`, eventID).Scan(&status, &maxCapacity, &deadline)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to select event for registration: %w", err)
	}

	if status != model.EventStatusActive {
		_ = tx.Rollback()
		return nil, ErrEventInactive
	}

	var studentActive bool
	err = tx.QueryRowContext(ctx, `
		SELECT is_active FROM students WHERE student_id = $1
	`, studentID).Scan(&studentActive)
	if err != nil || !studentActive {
		_ = tx.Rollback()
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to select student: %w", err)
		}
		return nil, ErrStudentNotFound
	}

	if deadline != nil && time.Now().After(*deadline) {
		_ = tx.Rollback()
		return nil, ErrDeadlinePassed
	}

	if maxCapacity != nil {
		var count int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM registrations
			WHERE event_id = $1 AND status = 'registered'
		`, eventID).Scan(&count)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to count registrations: %w", err)
		}
		if count >= *maxCapacity {
			_ = tx.Rollback()
			return nil, ErrCapacityExceeded
		}
	}

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM registrations
		WHERE event_id = $1 AND student_id = $2 AND status != 'cancelled'
	`, eventID, studentID).Scan(&existing)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to check duplicate registration: %w", err)
	}
	if existing > 0 {
		_ = tx.Rollback()
		return nil, ErrDuplicateRegistration
	}

	reg := &model.Registration{
		ID:        uuid.New(),
		EventID:   eventID,
		StudentID: studentID,
		Status:    model.RegistrationStatusRegistered,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO registrations (registration_id, event_id, student_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING registered_at
	`, reg.ID, reg.EventID, reg.StudentID, reg.Status).Scan(&reg.RegisteredAt)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", ErrUnavailable)
	}

	return reg, nil
}

// CancelRegistrationTx soft-cancels a registration. Only status 'registered'
// may be cancelled; a second cancel reports ErrInvalidState instead of being
// silently ignored. Attendance rows, if any, are left untouched.
func (r *repository) CancelRegistrationTx(ctx context.Context, registrationID uuid.UUID, reason string) (*model.Registration, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", ErrUnavailable)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var currentStatus string
	err = tx.QueryRowContext(ctx, `
		SELECT status
		FROM registrations
		WHERE registration_id = $1
		FOR UPDATE
	`, registrationID).Scan(&currentStatus)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to select registration for cancellation: %w", err)
	}

	if currentStatus != model.RegistrationStatusRegistered {
		_ = tx.Rollback()
		return nil, ErrInvalidState
	}

	var reg model.Registration
	err = tx.QueryRowContext(ctx, `
		UPDATE registrations
		SET status = 'cancelled', cancelled_at = NOW(), cancellation_reason = $2
		WHERE registration_id = $1
		RETURNING registration_id, event_id, student_id, status, registered_at, cancelled_at, cancellation_reason
	`, registrationID, reason).Scan(
		&reg.ID, &reg.EventID, &reg.StudentID, &reg.Status,
		&reg.RegisteredAt, &reg.CancelledAt, &reg.CancellationReason,
	)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to cancel registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation transaction: %w", ErrUnavailable)
	}

	return &reg, nil
}

// CheckInTx records attendance for a registration exactly once. The
// registration row lock serializes concurrent check-ins; the unique index on
// attendance.registration_id backs the same invariant in the schema.
// Registration status is not touched: "attended" is derived from the presence
// of the attendance row.
func (r *repository) CheckInTx(ctx context.Context, registrationID uuid.UUID, method string) (*model.Attendance, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", ErrUnavailable)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status
		FROM registrations
		WHERE registration_id = $1
		FOR UPDATE
	`, registrationID).Scan(&status)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotActive
		}
		return nil, fmt.Errorf("failed to select registration for check-in: %w", err)
	}
	if status != model.RegistrationStatusRegistered {
		_ = tx.Rollback()
		return nil, ErrRegistrationNotActive
	}

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance WHERE registration_id = $1
	`, registrationID).Scan(&existing)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to check existing attendance: %w", err)
	}
	if existing > 0 {
		_ = tx.Rollback()
		return nil, ErrAlreadyCheckedIn
	}

	att := &model.Attendance{
		ID:             uuid.New(),
		RegistrationID: registrationID,
		CheckInMethod:  method,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO attendance (attendance_id, registration_id, check_in_method)
		VALUES ($1, $2, $3)
		RETURNING checked_in_at
	`, att.ID, att.RegistrationID, att.CheckInMethod).Scan(&att.CheckedInAt)
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, fmt.Errorf("failed to insert attendance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit check-in transaction: %w", ErrUnavailable)
	}

	return att, nil
}

// SubmitFeedbackTx sets the rating and comment on an attendance record once.
// A second submission is rejected, never merged or overwritten.
func (r *repository) SubmitFeedbackTx(ctx context.Context, attendanceID uuid.UUID, rating int, comment *string) (*model.Attendance, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	if comment != nil && utf8.RuneCountInString(*comment) > MaxCommentLength {
		return nil, ErrCommentTooLong
	}

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", ErrUnavailable)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var existingRating *int
	err = tx.QueryRowContext(ctx, `
		SELECT feedback_rating
		FROM attendance
		WHERE attendance_id = $1
		FOR UPDATE
	`, attendanceID).Scan(&existingRating)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttendanceNotFound
		}
		return nil, fmt.Errorf("failed to select attendance for feedback: %w", err)
	}
	if existingRating != nil {
		_ = tx.Rollback()
		return nil, ErrFeedbackAlreadySubmitted
	}

	var att model.Attendance
	err = tx.QueryRowContext(ctx, `
		UPDATE attendance
		SET feedback_rating = $2, feedback_comment = $3, feedback_submitted_at = NOW()
		WHERE attendance_id = $1
		RETURNING attendance_id, registration_id, checked_in_at, checked_out_at, check_in_method,
		          feedback_rating, feedback_comment, feedback_submitted_at
	`, attendanceID, rating, comment).Scan(
		&att.ID, &att.RegistrationID, &att.CheckedInAt, &att.CheckedOutAt, &att.CheckInMethod,
		&att.FeedbackRating, &att.FeedbackComment, &att.FeedbackSubmittedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to submit feedback: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit feedback transaction: %w", ErrUnavailable)
	}

	return &att, nil
}

func (r *repository) GetRegistrationByID(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	query := `
		SELECT registration_id, event_id, student_id, status, registered_at, cancelled_at, cancellation_reason
		FROM registrations
		WHERE registration_id = $1
	`
	var reg model.Registration
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&reg.ID, &reg.EventID, &reg.StudentID, &reg.Status,
		&reg.RegisteredAt, &reg.CancelledAt, &reg.CancellationReason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return &reg, nil
}

func (r *repository) StudentRegistrations(ctx context.Context, studentID uuid.UUID) ([]StudentRegistrationRow, error) {
	query := `
		SELECT r.registration_id, r.event_id, r.student_id, r.status, r.registered_at,
		       r.cancelled_at, r.cancellation_reason,
		       e.title, e.event_type, e.start_datetime, e.end_datetime,
		       a.attendance_id, a.registration_id, a.checked_in_at, a.checked_out_at,
		       a.check_in_method, a.feedback_rating, a.feedback_comment, a.feedback_submitted_at
		FROM registrations r
		JOIN events e ON r.event_id = e.event_id
		LEFT JOIN attendance a ON r.registration_id = a.registration_id
		WHERE r.student_id = $1
		ORDER BY e.start_datetime DESC
	`

	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student registrations: %w", err)
	}
	defer rows.Close()

	var out []StudentRegistrationRow
	for rows.Next() {
		var (
			row      StudentRegistrationRow
			attID    *uuid.UUID
			attRegID *uuid.UUID
			att      model.Attendance
			checkIn  *time.Time
			method   *string
		)
		if err := rows.Scan(
			&row.Registration.ID, &row.Registration.EventID, &row.Registration.StudentID,
			&row.Registration.Status, &row.Registration.RegisteredAt,
			&row.Registration.CancelledAt, &row.Registration.CancellationReason,
			&row.EventTitle, &row.EventType, &row.StartAt, &row.EndAt,
			&attID, &attRegID, &checkIn, &att.CheckedOutAt,
			&method, &att.FeedbackRating, &att.FeedbackComment, &att.FeedbackSubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan student registration: %w", err)
		}
		if attID != nil {
			att.ID = *attID
			att.RegistrationID = *attRegID
			att.CheckedInAt = *checkIn
			att.CheckInMethod = *method
			row.Attendance = &att
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
