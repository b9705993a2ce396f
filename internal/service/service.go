package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"campusevents/internal/dto"
	"campusevents/internal/model"
	"campusevents/internal/rabbit"
	"campusevents/internal/repo"
	"campusevents/pkg/validator"
)

type Service interface {
	CreateCollege(ctx *ginext.Context)
	GetCollege(ctx *ginext.Context)
	ListColleges(ctx *ginext.Context)

	CreateEvent(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	ListEvents(ctx *ginext.Context)
	UpdateEvent(ctx *ginext.Context)
	CancelEvent(ctx *ginext.Context)
	GetEventStats(ctx *ginext.Context)

	CreateStudent(ctx *ginext.Context)
	GetStudent(ctx *ginext.Context)
	ListStudents(ctx *ginext.Context)
	GetStudentRegistrations(ctx *ginext.Context)
	GetStudentSummary(ctx *ginext.Context)

	Register(ctx *ginext.Context)
	GetRegistration(ctx *ginext.Context)
	CancelRegistration(ctx *ginext.Context)
	CheckIn(ctx *ginext.Context)
	SubmitFeedback(ctx *ginext.Context)

	EventPopularityReport(ctx *ginext.Context)
	AttendanceReport(ctx *ginext.Context)
	FeedbackReport(ctx *ginext.Context)
	TopStudentsReport(ctx *ginext.Context)
	CollegePerformanceReport(ctx *ginext.Context)
	EventTypeReport(ctx *ginext.Context)
	SystemOverviewReport(ctx *ginext.Context)
	EventRiskReport(ctx *ginext.Context)
}

type service struct {
	repo repo.Repository
	log  *zerolog.Logger
	rbt  *rabbit.Client
}

func NewService(repo repo.Repository, logger *zerolog.Logger, rbt *rabbit.Client) Service {
	return &service{
		repo: repo,
		log:  logger,
		rbt:  rbt,
	}
}

func parseIDParam(ctx *ginext.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		dto.FieldIncorrectError(ctx, name)
		return uuid.Nil, false
	}
	return id, true
}

// respondError translates storage sentinels into the HTTP error envelope.
// Anything unmapped is a 500.
func (s *service) respondError(ctx *ginext.Context, err error) {
	switch {
	case errors.Is(err, repo.ErrCollegeNotFound):
		dto.NotFoundError(ctx, dto.CollegeNotFound, "College not found")
	case errors.Is(err, repo.ErrCollegeExists):
		dto.ConflictError(ctx, dto.CollegeExists, "College code already exists")
	case errors.Is(err, repo.ErrEventNotFound):
		dto.NotFoundError(ctx, dto.EventNotFound, "Event not found")
	case errors.Is(err, repo.ErrEventInactive):
		dto.BadResponseError(ctx, dto.EventInactive, "Event is not open for registration")
	case errors.Is(err, repo.ErrInvalidEventTimes):
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Event end must be after start")
	case errors.Is(err, repo.ErrDeadlinePassed):
		dto.BadResponseError(ctx, dto.DeadlinePassed, "Registration deadline has passed")
	case errors.Is(err, repo.ErrCapacityExceeded):
		dto.ConflictError(ctx, dto.CapacityExceeded, "Event is at full capacity")
	case errors.Is(err, repo.ErrDuplicateRegistration):
		dto.ConflictError(ctx, dto.RegistrationDuplicate, "Student is already registered for this event")
	case errors.Is(err, repo.ErrStudentNotFound):
		dto.NotFoundError(ctx, dto.StudentNotFound, "Student not found")
	case errors.Is(err, repo.ErrStudentExists):
		dto.ConflictError(ctx, dto.StudentExists, "Student email or number already exists")
	case errors.Is(err, repo.ErrRegistrationNotFound):
		dto.NotFoundError(ctx, dto.RegistrationNotFound, "Registration not found")
	case errors.Is(err, repo.ErrInvalidState):
		dto.ConflictError(ctx, dto.InvalidState, "Operation is not allowed in the current state")
	case errors.Is(err, repo.ErrRegistrationNotActive):
		dto.ConflictError(ctx, dto.RegistrationNotActive, "Registration is not active")
	case errors.Is(err, repo.ErrAlreadyCheckedIn):
		dto.ConflictError(ctx, dto.AlreadyCheckedIn, "Student is already checked in")
	case errors.Is(err, repo.ErrAttendanceNotFound):
		dto.NotFoundError(ctx, dto.AttendanceNotFound, "Attendance record not found")
	case errors.Is(err, repo.ErrInvalidRating):
		dto.BadResponseError(ctx, dto.InvalidRating, "Rating must be between 1 and 5")
	case errors.Is(err, repo.ErrCommentTooLong):
		dto.BadResponseError(ctx, dto.CommentTooLong, "Comment exceeds maximum length")
	case errors.Is(err, repo.ErrFeedbackAlreadySubmitted):
		dto.ConflictError(ctx, dto.FeedbackAlreadyExists, "Feedback has already been submitted")
	case errors.Is(err, repo.ErrUnavailable):
		s.log.Warn().Err(err).Msg("storage unavailable")
		dto.UnavailableError(ctx)
	default:
		s.log.Error().Err(err).Msg("unhandled storage error")
		dto.InternalServerError(ctx)
	}
}

func (s *service) CreateCollege(ctx *ginext.Context) {
	var req dto.CreateCollegeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	college := &model.College{
		Name:         req.Name,
		Code:         req.Code,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		ContactEmail: req.ContactEmail,
		Phone:        req.Phone,
	}

	college, err := s.repo.CreateCollege(ctx.Request.Context(), college)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	s.log.Info().Str("college_id", college.ID.String()).Msg("college created successfully")
	dto.SuccessCreatedResponse(ctx, college)
}

func (s *service) GetCollege(ctx *ginext.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	college, err := s.repo.GetCollegeByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, college)
}

func (s *service) ListColleges(ctx *ginext.Context) {
	colleges, err := s.repo.ListColleges(ctx.Request.Context())
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, colleges)
}

func (s *service) CreateEvent(ctx *ginext.Context) {
	var req dto.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	event := &model.Event{
		CollegeID:            req.CollegeID,
		Title:                req.Title,
		Description:          req.Description,
		EventType:            req.EventType,
		StartDatetime:        req.StartDatetime,
		EndDatetime:          req.EndDatetime,
		Location:             req.Location,
		MaxCapacity:          req.MaxCapacity,
		RegistrationDeadline: req.RegistrationDeadline,
		Status:               model.EventStatusActive,
		CreatedBy:            req.CreatedBy,
	}

	event, err := s.repo.CreateEvent(ctx.Request.Context(), event)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	s.log.Info().Str("event_id", event.ID.String()).Msg("event created successfully")
	s.scheduleCompletion(event)

	dto.SuccessCreatedResponse(ctx, event)
}

// scheduleCompletion queues a delayed timer that flips the event to completed
// once its end time passes. Best effort, the event is created either way.
func (s *service) scheduleCompletion(event *model.Event) {
	if s.rbt == nil {
		return
	}

	msg := dto.EventCompleteMessage{
		Kind:    dto.KindEventComplete,
		EventID: event.ID,
		EndAt:   event.EndDatetime,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal completion message")
		return
	}

	delay := time.Until(event.EndDatetime)
	if err := s.rbt.Publish(payload, delay); err != nil {
		s.log.Error().Err(err).Msg("failed to publish completion timer to RabbitMQ")
	}
}

func (s *service) GetEvent(ctx *ginext.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	event, err := s.repo.GetEventByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, event)
}

func (s *service) ListEvents(ctx *ginext.Context) {
	filter := repo.EventFilter{
		EventType: ctx.Query("event_type"),
		Status:    ctx.Query("status"),
	}
	if raw := ctx.Query("college_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			dto.FieldIncorrectError(ctx, "college_id")
			return
		}
		filter.CollegeID = &id
	}
	if filter.EventType != "" && !model.ValidEventType(filter.EventType) {
		dto.FieldIncorrectError(ctx, "event_type")
		return
	}

	events, err := s.repo.ListEvents(ctx.Request.Context(), filter)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, events)
}

func (s *service) UpdateEvent(ctx *ginext.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	var req dto.UpdateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	event, err := s.repo.UpdateEventTx(ctx.Request.Context(), id, repo.EventUpdate{
		Title:                req.Title,
		Description:          req.Description,
		EventType:            req.EventType,
		StartDatetime:        req.StartDatetime,
		EndDatetime:          req.EndDatetime,
		Location:             req.Location,
		MaxCapacity:          req.MaxCapacity,
		RegistrationDeadline: req.RegistrationDeadline,
		Status:               req.Status,
	})
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	s.log.Info().Str("event_id", event.ID.String()).Msg("event updated")
	dto.SuccessResponse(ctx, event)
}

func (s *service) CancelEvent(ctx *ginext.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	event, err := s.repo.CancelEventTx(ctx.Request.Context(), id)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	s.log.Info().Str("event_id", event.ID.String()).Msg("event cancelled")
	dto.SuccessResponse(ctx, event)
}

func (s *service) CreateStudent(ctx *ginext.Context) {
	var req dto.CreateStudentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	student := &model.Student{
		CollegeID:     req.CollegeID,
		Email:         req.Email,
		Name:          req.Name,
		StudentNumber: req.StudentNumber,
		Phone:         req.Phone,
		YearOfStudy:   req.YearOfStudy,
		Department:    req.Department,
	}

	student, err := s.repo.CreateStudent(ctx.Request.Context(), student)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	s.log.Info().Str("student_id", student.ID.String()).Msg("student created successfully")
	dto.SuccessCreatedResponse(ctx, student)
}

func (s *service) GetStudent(ctx *ginext.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	student, err := s.repo.GetStudentByID(ctx.Request.Context(), id)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, student)
}

func (s *service) ListStudents(ctx *ginext.Context) {
	var collegeID *uuid.UUID
	if raw := ctx.Query("college_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			dto.FieldIncorrectError(ctx, "college_id")
			return
		}
		collegeID = &id
	}

	students, err := s.repo.ListStudents(ctx.Request.Context(), collegeID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, students)
}
