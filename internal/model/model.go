package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventStatusDraft     = "draft"
	EventStatusActive    = "active"
	EventStatusCancelled = "cancelled"
	EventStatusCompleted = "completed"

	EventTypeHackathon = "hackathon"
	EventTypeWorkshop  = "workshop"
	EventTypeTechTalk  = "tech_talk"
	EventTypeFest      = "fest"

	RegistrationStatusRegistered = "registered"
	RegistrationStatusCancelled  = "cancelled"
	RegistrationStatusWaitlisted = "waitlisted"

	CheckInMethodManual = "manual"
	CheckInMethodQRCode = "qr_code"
	CheckInMethodRFID   = "rfid"
)

type College struct {
	ID           uuid.UUID `db:"college_id" json:"college_id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	Address      *string   `db:"address,omitempty" json:"address,omitempty"`
	City         *string   `db:"city,omitempty" json:"city,omitempty"`
	State        *string   `db:"state,omitempty" json:"state,omitempty"`
	ContactEmail *string   `db:"contact_email,omitempty" json:"contact_email,omitempty"`
	Phone        *string   `db:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Event struct {
	ID                   uuid.UUID  `db:"event_id" json:"event_id"`
	CollegeID            uuid.UUID  `db:"college_id" json:"college_id"`
	Title                string     `db:"title" json:"title"`
	Description          string     `db:"description,omitempty" json:"description,omitempty"`
	EventType            string     `db:"event_type" json:"event_type"`
	StartDatetime        time.Time  `db:"start_datetime" json:"start_datetime"`
	EndDatetime          time.Time  `db:"end_datetime" json:"end_datetime"`
	Location             *string    `db:"location,omitempty" json:"location,omitempty"`
	MaxCapacity          *int       `db:"max_capacity,omitempty" json:"max_capacity,omitempty"`
	RegistrationDeadline *time.Time `db:"registration_deadline,omitempty" json:"registration_deadline,omitempty"`
	Status               string     `db:"status" json:"status"`
	CreatedBy            string     `db:"created_by" json:"created_by"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

type Student struct {
	ID            uuid.UUID `db:"student_id" json:"student_id"`
	CollegeID     uuid.UUID `db:"college_id" json:"college_id"`
	Email         string    `db:"email" json:"email"`
	Name          string    `db:"name" json:"name"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	Phone         *string   `db:"phone,omitempty" json:"phone,omitempty"`
	YearOfStudy   *int      `db:"year_of_study,omitempty" json:"year_of_study,omitempty"`
	Department    *string   `db:"department,omitempty" json:"department,omitempty"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type Registration struct {
	ID                 uuid.UUID  `db:"registration_id" json:"registration_id"`
	EventID            uuid.UUID  `db:"event_id" json:"event_id"`
	StudentID          uuid.UUID  `db:"student_id" json:"student_id"`
	Status             string     `db:"status" json:"status"`
	RegisteredAt       time.Time  `db:"registered_at" json:"registered_at"`
	CancelledAt        *time.Time `db:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	CancellationReason *string    `db:"cancellation_reason,omitempty" json:"cancellation_reason,omitempty"`
}

type Attendance struct {
	ID                  uuid.UUID  `db:"attendance_id" json:"attendance_id"`
	RegistrationID      uuid.UUID  `db:"registration_id" json:"registration_id"`
	CheckedInAt         time.Time  `db:"checked_in_at" json:"checked_in_at"`
	CheckedOutAt        *time.Time `db:"checked_out_at,omitempty" json:"checked_out_at,omitempty"`
	CheckInMethod       string     `db:"check_in_method" json:"check_in_method"`
	FeedbackRating      *int       `db:"feedback_rating,omitempty" json:"feedback_rating,omitempty"`
	FeedbackComment     *string    `db:"feedback_comment,omitempty" json:"feedback_comment,omitempty"`
	FeedbackSubmittedAt *time.Time `db:"feedback_submitted_at,omitempty" json:"feedback_submitted_at,omitempty"`
}

func ValidEventType(t string) bool {
	switch t {
	case EventTypeHackathon, EventTypeWorkshop, EventTypeTechTalk, EventTypeFest:
		return true
	}
	return false
}

func ValidCheckInMethod(m string) bool {
	switch m {
	case CheckInMethodManual, CheckInMethodQRCode, CheckInMethodRFID:
		return true
	}
	return false
}
