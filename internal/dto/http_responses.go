package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	CollegeNotFound = "COLLEGE_NOT_FOUND"
	CollegeExists   = "COLLEGE_EXISTS"
	EventNotFound   = "EVENT_NOT_FOUND"
	EventInactive   = "EVENT_INACTIVE"
	InvalidState    = "INVALID_STATE"
	StudentNotFound = "STUDENT_NOT_FOUND"
	StudentExists   = "STUDENT_EXISTS"

	RegistrationNotFound  = "REGISTRATION_NOT_FOUND"
	RegistrationDuplicate = "REGISTRATION_DUPLICATE"
	DeadlinePassed        = "DEADLINE_PASSED"
	CapacityExceeded      = "CAPACITY_EXCEEDED"
	RegistrationNotActive = "REGISTRATION_NOT_ACTIVE"
	AlreadyCheckedIn      = "ALREADY_CHECKED_IN"
	AttendanceNotFound    = "ATTENDANCE_NOT_FOUND"
	InvalidRating         = "INVALID_RATING"
	CommentTooLong        = "COMMENT_TOO_LONG"
	FeedbackAlreadyExists = "FEEDBACK_ALREADY_SUBMITTED"
)

type CreateCollegeRequest struct {
	Name         string  `json:"name" validate:"required,min=2,max=255"`
	Code         string  `json:"code" validate:"required,min=2,max=20"`
	Address      *string `json:"address,omitempty"`
	City         *string `json:"city,omitempty"`
	State        *string `json:"state,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty" validate:"omitempty,email"`
	Phone        *string `json:"phone,omitempty"`
}

type CreateEventRequest struct {
	CollegeID            uuid.UUID  `json:"college_id" validate:"required"`
	Title                string     `json:"title" validate:"required,min=3,max=255"`
	Description          string     `json:"description"`
	EventType            string     `json:"event_type" validate:"required,event_type"`
	StartDatetime        time.Time  `json:"start_datetime" validate:"required"`
	EndDatetime          time.Time  `json:"end_datetime" validate:"required"`
	Location             *string    `json:"location,omitempty"`
	MaxCapacity          *int       `json:"max_capacity,omitempty" validate:"omitempty,gt=0"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	CreatedBy            string     `json:"created_by" validate:"required"`
}

type UpdateEventRequest struct {
	Title                *string    `json:"title,omitempty" validate:"omitempty,min=3,max=255"`
	Description          *string    `json:"description,omitempty"`
	EventType            *string    `json:"event_type,omitempty" validate:"omitempty,event_type"`
	StartDatetime        *time.Time `json:"start_datetime,omitempty"`
	EndDatetime          *time.Time `json:"end_datetime,omitempty"`
	Location             *string    `json:"location,omitempty"`
	MaxCapacity          *int       `json:"max_capacity,omitempty" validate:"omitempty,gt=0"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	Status               *string    `json:"status,omitempty" validate:"omitempty,oneof=draft active cancelled completed"`
}

type CreateStudentRequest struct {
	CollegeID     uuid.UUID `json:"college_id" validate:"required"`
	Email         string    `json:"email" validate:"required,email"`
	Name          string    `json:"name" validate:"required,min=2,max=255"`
	StudentNumber string    `json:"student_number" validate:"required"`
	Phone         *string   `json:"phone,omitempty"`
	YearOfStudy   *int      `json:"year_of_study,omitempty" validate:"omitempty,gte=1,lte=8"`
	Department    *string   `json:"department,omitempty"`
}

type RegisterRequest struct {
	StudentID uuid.UUID `json:"student_id" validate:"required"`
}

type CancelRegistrationRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type CheckInRequest struct {
	RegistrationID uuid.UUID `json:"registration_id" validate:"required"`
	CheckInMethod  string    `json:"check_in_method,omitempty" validate:"omitempty,check_in_method"`
}

type FeedbackRequest struct {
	AttendanceID uuid.UUID `json:"attendance_id" validate:"required"`
	Rating       int       `json:"rating" validate:"required,gte=1,lte=5"`
	Comment      *string   `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

// Queue message kinds. EventComplete rides the delayed exchange and fires
// when the event's end time passes; the notify kinds are sent immediately.
const (
	KindEventComplete         = "event_complete"
	KindRegistrationConfirmed = "registration_confirmed"
	KindRegistrationCancelled = "registration_cancelled"
)

type EventCompleteMessage struct {
	Kind    string    `json:"kind"`
	EventID uuid.UUID `json:"event_id"`
	EndAt   time.Time `json:"end_at"`
}

type NotifyMessage struct {
	Kind         string    `json:"kind"`
	StudentEmail string    `json:"student_email"`
	StudentName  string    `json:"student_name"`
	EventTitle   string    `json:"event_title"`
	EventStart   time.Time `json:"event_start"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func NotFoundError(c *ginext.Context, code, desc string) {
	c.JSON(404, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func ConflictError(c *ginext.Context, code, desc string) {
	c.JSON(409, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

// UnavailableError is the retryable variant: storage could not start or
// commit a transaction, the request itself was fine.
func UnavailableError(c *ginext.Context) {
	c.JSON(503, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func FieldIncorrectError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
