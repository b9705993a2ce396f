package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"campusevents/internal/model"
)

var (
	ErrCollegeNotFound          = errors.New("college not found")
	ErrCollegeExists            = errors.New("college code already exists")
	ErrEventNotFound            = errors.New("event not found")
	ErrEventInactive            = errors.New("event is not active")
	ErrInvalidEventTimes        = errors.New("event end must be after start")
	ErrDeadlinePassed           = errors.New("registration deadline has passed")
	ErrCapacityExceeded         = errors.New("event is at full capacity")
	ErrDuplicateRegistration    = errors.New("duplicate registration")
	ErrStudentNotFound          = errors.New("student not found")
	ErrStudentExists            = errors.New("student already exists")
	ErrRegistrationNotFound     = errors.New("registration not found")
	ErrInvalidState             = errors.New("invalid state transition")
	ErrRegistrationNotActive    = errors.New("registration is not active")
	ErrAlreadyCheckedIn         = errors.New("already checked in")
	ErrAttendanceNotFound       = errors.New("attendance record not found")
	ErrInvalidRating            = errors.New("rating must be between 1 and 5")
	ErrCommentTooLong           = errors.New("feedback comment is too long")
	ErrFeedbackAlreadySubmitted = errors.New("feedback already submitted")
	ErrUnavailable              = errors.New("storage temporarily unavailable")
)

// MaxCommentLength bounds feedback comments, matching the attendance table
// CHECK constraint.
const MaxCommentLength = 1000

type EventFilter struct {
	CollegeID *uuid.UUID
	EventType string
	Status    string
}

type EventUpdate struct {
	Title                *string
	Description          *string
	EventType            *string
	StartDatetime        *time.Time
	EndDatetime          *time.Time
	Location             *string
	MaxCapacity          *int
	RegistrationDeadline *time.Time
	Status               *string
}

type CollegeSummary struct {
	model.College
	TotalEvents   int `json:"total_events"`
	TotalStudents int `json:"total_students"`
}

type StudentSummary struct {
	model.Student
	CollegeName        string `json:"college_name"`
	TotalRegistrations int    `json:"total_registrations"`
	EventsAttended     int    `json:"events_attended"`
}

type StudentRegistrationRow struct {
	Registration model.Registration
	EventTitle   string
	EventType    string
	StartAt      time.Time
	EndAt        time.Time
	Attendance   *model.Attendance
}

type Repository interface {
	CreateCollege(ctx context.Context, c *model.College) (*model.College, error)
	GetCollegeByID(ctx context.Context, id uuid.UUID) (*model.College, error)
	ListColleges(ctx context.Context) ([]CollegeSummary, error)

	CreateEvent(ctx context.Context, e *model.Event) (*model.Event, error)
	GetEventByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error)
	UpdateEventTx(ctx context.Context, id uuid.UUID, upd EventUpdate) (*model.Event, error)
	CancelEventTx(ctx context.Context, id uuid.UUID) (*model.Event, error)
	CompleteEventTx(ctx context.Context, id uuid.UUID) (bool, error)

	CreateStudent(ctx context.Context, s *model.Student) (*model.Student, error)
	GetStudentByID(ctx context.Context, id uuid.UUID) (*model.Student, error)
	ListStudents(ctx context.Context, collegeID *uuid.UUID) ([]StudentSummary, error)

	RegisterTx(ctx context.Context, eventID, studentID uuid.UUID) (*model.Registration, error)
	CancelRegistrationTx(ctx context.Context, registrationID uuid.UUID, reason string) (*model.Registration, error)
	CheckInTx(ctx context.Context, registrationID uuid.UUID, method string) (*model.Attendance, error)
	SubmitFeedbackTx(ctx context.Context, attendanceID uuid.UUID, rating int, comment *string) (*model.Attendance, error)
	GetRegistrationByID(ctx context.Context, id uuid.UUID) (*model.Registration, error)
	StudentRegistrations(ctx context.Context, studentID uuid.UUID) ([]StudentRegistrationRow, error)

	EventPopularityRows(ctx context.Context) ([]EventPopularityRow, error)
	EventStatsRow(ctx context.Context, eventID uuid.UUID) (*EventStatsRow, error)
	EventAttendanceRows(ctx context.Context) ([]EventAttendanceRow, error)
	FeedbackRows(ctx context.Context) ([]EventFeedbackRow, error)
	StudentActivityRows(ctx context.Context) ([]StudentActivityRow, error)
	CollegePerformanceRows(ctx context.Context) ([]CollegePerformanceRow, error)
	EventTypeRows(ctx context.Context) ([]EventTypeRow, error)
	SystemOverviewRow(ctx context.Context) (*SystemOverviewRow, error)
	UpcomingEventRows(ctx context.Context) ([]UpcomingEventRow, error)

	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "violates foreign key constraint")
}

func (r *repository) CreateCollege(ctx context.Context, c *model.College) (*model.College, error) {
	query := `
		INSERT INTO colleges (college_id, name, code, address, city, state, contact_email, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	c.ID = uuid.New()
	c.Code = strings.ToUpper(c.Code)
	row := r.db.QueryRowContext(ctx, query,
		c.ID, c.Name, c.Code, c.Address, c.City, c.State, c.ContactEmail, c.Phone,
	)
	if err := row.Scan(&c.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCollegeExists
		}
		return nil, fmt.Errorf("failed to insert college: %w", err)
	}
	return c, nil
}

func (r *repository) GetCollegeByID(ctx context.Context, id uuid.UUID) (*model.College, error) {
	query := `
		SELECT college_id, name, code, address, city, state, contact_email, phone, created_at
		FROM colleges WHERE college_id = $1
	`
	var c model.College
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Code, &c.Address, &c.City, &c.State, &c.ContactEmail, &c.Phone, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCollegeNotFound
		}
		return nil, fmt.Errorf("failed to get college: %w", err)
	}
	return &c, nil
}

func (r *repository) ListColleges(ctx context.Context) ([]CollegeSummary, error) {
	query := `
		SELECT c.college_id, c.name, c.code, c.address, c.city, c.state, c.contact_email, c.phone, c.created_at,
		       COUNT(DISTINCT e.event_id) AS total_events,
		       COUNT(DISTINCT s.student_id) AS total_students
		FROM colleges c
		LEFT JOIN events e ON c.college_id = e.college_id AND e.status = 'active'
		LEFT JOIN students s ON c.college_id = s.college_id AND s.is_active = TRUE
		GROUP BY c.college_id
		ORDER BY c.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list colleges: %w", err)
	}
	defer rows.Close()

	var out []CollegeSummary
	for rows.Next() {
		var c CollegeSummary
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Code, &c.Address, &c.City, &c.State, &c.ContactEmail, &c.Phone, &c.CreatedAt,
			&c.TotalEvents, &c.TotalStudents,
		); err != nil {
			return nil, fmt.Errorf("failed to scan college: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) (*model.Event, error) {
	if !e.EndDatetime.After(e.StartDatetime) {
		return nil, ErrInvalidEventTimes
	}

	query := `
		INSERT INTO events (event_id, college_id, title, description, event_type, start_datetime,
		                    end_datetime, location, max_capacity, registration_deadline, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	e.ID = uuid.New()
	if e.Status == "" {
		e.Status = model.EventStatusActive
	}
	row := r.db.QueryRowContext(ctx, query,
		e.ID, e.CollegeID, e.Title, e.Description, e.EventType, e.StartDatetime,
		e.EndDatetime, e.Location, e.MaxCapacity, e.RegistrationDeadline, e.Status, e.CreatedBy,
	)
	if err := row.Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrCollegeNotFound
		}
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return e, nil
}

const eventColumns = `event_id, college_id, title, description, event_type, start_datetime,
	end_datetime, location, max_capacity, registration_deadline, status, created_by, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }, e *model.Event) error {
	return row.Scan(
		&e.ID, &e.CollegeID, &e.Title, &e.Description, &e.EventType, &e.StartDatetime,
		&e.EndDatetime, &e.Location, &e.MaxCapacity, &e.RegistrationDeadline, &e.Status,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
}

func (r *repository) GetEventByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE event_id = $1`

	var e model.Event
	if err := scanEvent(r.db.QueryRowContext(ctx, query, id), &e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

func (r *repository) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error) {
	status := f.Status
	if status == "" {
		status = model.EventStatusActive
	}
	where := []string{"status = $1"}
	args := []any{status}

	if f.CollegeID != nil {
		args = append(args, *f.CollegeID)
		where = append(where, fmt.Sprintf("college_id = $%d", len(args)))
	}
	if f.EventType != "" {
		args = append(args, f.EventType)
		where = append(where, fmt.Sprintf("event_type = $%d", len(args)))
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY start_datetime ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *repository) UpdateEventTx(ctx context.Context, id uuid.UUID, upd EventUpdate) (*model.Event, error) {
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

	var e model.Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE event_id = $1 FOR UPDATE`
	if err := scanEvent(tx.QueryRowContext(ctx, query, id), &e); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to select event for update: %w", err)
	}

	if upd.Title != nil {
		e.Title = *upd.Title
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	if upd.EventType != nil {
		e.EventType = *upd.EventType
	}
	if upd.StartDatetime != nil {
		e.StartDatetime = *upd.StartDatetime
	}
	if upd.EndDatetime != nil {
		e.EndDatetime = *upd.EndDatetime
	}
	if upd.Location != nil {
		e.Location = upd.Location
	}
	if upd.MaxCapacity != nil {
		e.MaxCapacity = upd.MaxCapacity
	}
	if upd.RegistrationDeadline != nil {
		e.RegistrationDeadline = upd.RegistrationDeadline
	}
	if upd.Status != nil {
		e.Status = *upd.Status
	}

	// Lowering max_capacity below the current registered count is allowed;
	// utilization above 100% is surfaced by the reports instead.
	if !e.EndDatetime.After(e.StartDatetime) {
		_ = tx.Rollback()
		return nil, ErrInvalidEventTimes
	}

	updateQuery := `
		UPDATE events
		SET title = $1, description = $2, event_type = $3, start_datetime = $4, end_datetime = $5,
		    location = $6, max_capacity = $7, registration_deadline = $8, status = $9, updated_at = NOW()
		WHERE event_id = $10
		RETURNING updated_at
	`
	if err := tx.QueryRowContext(ctx, updateQuery,
		e.Title, e.Description, e.EventType, e.StartDatetime, e.EndDatetime,
		e.Location, e.MaxCapacity, e.RegistrationDeadline, e.Status, e.ID,
	).Scan(&e.UpdatedAt); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", ErrUnavailable)
	}
	return &e, nil
}

func (r *repository) CancelEventTx(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `
		UPDATE events
		SET status = 'cancelled', updated_at = NOW()
		WHERE event_id = $1 AND status = 'active'
		RETURNING ` + eventColumns

	var e model.Event
	if err := scanEvent(r.db.QueryRowContext(ctx, query, id), &e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to cancel event: %w", err)
	}
	return &e, nil
}

// CompleteEventTx flips an event to completed once its end time has passed.
// Returns false when the event is gone or no longer active.
func (r *repository) CompleteEventTx(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE events
		SET status = 'completed', updated_at = NOW()
		WHERE event_id = $1 AND status = 'active' AND end_datetime <= NOW()
		RETURNING event_id
	`
	var got uuid.UUID
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to complete event: %w", err)
	}
	return true, nil
}

func (r *repository) CreateStudent(ctx context.Context, s *model.Student) (*model.Student, error) {
	query := `
		INSERT INTO students (student_id, college_id, email, name, student_number, phone, year_of_study, department)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING is_active, created_at
	`

	s.ID = uuid.New()
	s.Email = strings.ToLower(s.Email)
	row := r.db.QueryRowContext(ctx, query,
		s.ID, s.CollegeID, s.Email, s.Name, s.StudentNumber, s.Phone, s.YearOfStudy, s.Department,
	)
	if err := row.Scan(&s.IsActive, &s.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrStudentExists
		}
		if isForeignKeyViolation(err) {
			return nil, ErrCollegeNotFound
		}
		return nil, fmt.Errorf("failed to insert student: %w", err)
	}
	return s, nil
}

func (r *repository) GetStudentByID(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	query := `
		SELECT student_id, college_id, email, name, student_number, phone, year_of_study, department, is_active, created_at
		FROM students WHERE student_id = $1
	`
	var s model.Student
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.CollegeID, &s.Email, &s.Name, &s.StudentNumber, &s.Phone, &s.YearOfStudy,
		&s.Department, &s.IsActive, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return &s, nil
}

func (r *repository) ListStudents(ctx context.Context, collegeID *uuid.UUID) ([]StudentSummary, error) {
	query := `
		SELECT s.student_id, s.college_id, s.email, s.name, s.student_number, s.phone, s.year_of_study,
		       s.department, s.is_active, s.created_at, c.name,
		       COUNT(DISTINCT r.registration_id) AS total_registrations,
		       COUNT(DISTINCT a.attendance_id) AS events_attended
		FROM students s
		JOIN colleges c ON s.college_id = c.college_id
		LEFT JOIN registrations r ON s.student_id = r.student_id AND r.status = 'registered'
		LEFT JOIN attendance a ON r.registration_id = a.registration_id
		WHERE s.is_active = TRUE
	`
	var args []any
	if collegeID != nil {
		query += ` AND s.college_id = $1`
		args = append(args, *collegeID)
	}
	query += `
		GROUP BY s.student_id, c.name
		ORDER BY c.name ASC, s.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var out []StudentSummary
	for rows.Next() {
		var s StudentSummary
		if err := rows.Scan(
			&s.ID, &s.CollegeID, &s.Email, &s.Name, &s.StudentNumber, &s.Phone, &s.YearOfStudy,
			&s.Department, &s.IsActive, &s.CreatedAt, &s.CollegeName,
			&s.TotalRegistrations, &s.EventsAttended,
		); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
