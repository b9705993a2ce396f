package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wb-go/wbf/ginext"

	"campusevents/internal/dto"
	"campusevents/internal/metric"
	"campusevents/internal/model"
	"campusevents/internal/repo"
	"campusevents/internal/stats"
	"campusevents/pkg/validator"
)

func (s *service) Register(ctx *ginext.Context) {
	eventID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	var req dto.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	reg, err := s.repo.RegisterTx(ctx.Request.Context(), eventID, req.StudentID)
	if err != nil {
		s.countRejection(err)
		s.respondError(ctx, err)
		return
	}

	metric.RegistrationsTotal.Inc()
	s.log.Info().
		Str("registration_id", reg.ID.String()).
		Str("event_id", eventID.String()).
		Msg("registration created successfully")

	s.notifyRegistration(ctx, dto.KindRegistrationConfirmed, reg)
	dto.SuccessCreatedResponse(ctx, reg)
}

func (s *service) countRejection(err error) {
	switch {
	case errors.Is(err, repo.ErrCapacityExceeded):
		metric.RegistrationRejectionsTotal.WithLabelValues(metric.ReasonCapacity).Inc()
	case errors.Is(err, repo.ErrDeadlinePassed):
		metric.RegistrationRejectionsTotal.WithLabelValues(metric.ReasonDeadline).Inc()
	case errors.Is(err, repo.ErrDuplicateRegistration):
		metric.RegistrationRejectionsTotal.WithLabelValues(metric.ReasonDuplicate).Inc()
	case errors.Is(err, repo.ErrEventInactive):
		metric.RegistrationRejectionsTotal.WithLabelValues(metric.ReasonInactive).Inc()
	}
}

// notifyRegistration queues a mail notification. Failures only get logged,
// the registration already committed.
func (s *service) notifyRegistration(ctx *ginext.Context, kind string, reg *model.Registration) {
	if s.rbt == nil {
		return
	}

	student, err := s.repo.GetStudentByID(ctx.Request.Context(), reg.StudentID)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load student for notification")
		return
	}
	event, err := s.repo.GetEventByID(ctx.Request.Context(), reg.EventID)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load event for notification")
		return
	}

	msg := dto.NotifyMessage{
		Kind:         kind,
		StudentEmail: student.Email,
		StudentName:  student.Name,
		EventTitle:   event.Title,
		EventStart:   event.StartDatetime,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal notify message")
		return
	}
	if err := s.rbt.Publish(payload, 0); err != nil {
		s.log.Error().Err(err).Msg("failed to publish notify message to RabbitMQ")
	}
}

func (s *service) GetRegistration(ctx *ginext.Context) {
	regID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	reg, err := s.repo.GetRegistrationByID(ctx.Request.Context(), regID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, reg)
}

func (s *service) CancelRegistration(ctx *ginext.Context) {
	regID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	var req dto.CancelRegistrationRequest
	if ctx.Request.Body != nil && ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
			return
		}
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	reg, err := s.repo.CancelRegistrationTx(ctx.Request.Context(), regID, req.Reason)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	metric.CancellationsTotal.Inc()
	s.log.Info().
		Str("registration_id", reg.ID.String()).
		Msg("registration cancelled")

	s.notifyRegistration(ctx, dto.KindRegistrationCancelled, reg)
	dto.SuccessResponse(ctx, reg)
}

func (s *service) CheckIn(ctx *ginext.Context) {
	var req dto.CheckInRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	method := req.CheckInMethod
	if method == "" {
		method = model.CheckInMethodManual
	}

	att, err := s.repo.CheckInTx(ctx.Request.Context(), req.RegistrationID, method)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	metric.CheckInsTotal.WithLabelValues(method).Inc()
	s.log.Info().
		Str("attendance_id", att.ID.String()).
		Str("registration_id", req.RegistrationID.String()).
		Str("method", method).
		Msg("student checked in")

	dto.SuccessCreatedResponse(ctx, att)
}

func (s *service) SubmitFeedback(ctx *ginext.Context) {
	var req dto.FeedbackRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	att, err := s.repo.SubmitFeedbackTx(ctx.Request.Context(), req.AttendanceID, req.Rating, req.Comment)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	metric.FeedbackTotal.Inc()
	s.log.Info().
		Str("attendance_id", att.ID.String()).
		Int("rating", req.Rating).
		Msg("feedback recorded")

	dto.SuccessResponse(ctx, att)
}

type studentRegistrationItem struct {
	model.Registration
	EventTitle string            `json:"event_title"`
	EventType  string            `json:"event_type"`
	StartAt    time.Time         `json:"start_datetime"`
	EndAt      time.Time         `json:"end_datetime"`
	Attendance *model.Attendance `json:"attendance,omitempty"`
}

func (s *service) GetStudentRegistrations(ctx *ginext.Context) {
	studentID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	if _, err := s.repo.GetStudentByID(ctx.Request.Context(), studentID); err != nil {
		s.respondError(ctx, err)
		return
	}

	rows, err := s.repo.StudentRegistrations(ctx.Request.Context(), studentID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	items := make([]studentRegistrationItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, studentRegistrationItem{
			Registration: r.Registration,
			EventTitle:   r.EventTitle,
			EventType:    r.EventType,
			StartAt:      r.StartAt,
			EndAt:        r.EndAt,
			Attendance:   r.Attendance,
		})
	}
	dto.SuccessResponse(ctx, items)
}

type studentParticipationSummary struct {
	Student             *model.Student `json:"student"`
	TotalRegistrations  int            `json:"total_registrations"`
	ActiveRegistrations int            `json:"active_registrations"`
	EventsAttended      int            `json:"events_attended"`
	FeedbackGiven       int            `json:"feedback_given"`
	ActivityScore       float64        `json:"activity_score"`
	ActivityLevel       string         `json:"activity_level"`
}

func (s *service) GetStudentSummary(ctx *ginext.Context) {
	studentID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	student, err := s.repo.GetStudentByID(ctx.Request.Context(), studentID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	rows, err := s.repo.StudentRegistrations(ctx.Request.Context(), studentID)
	if err != nil {
		s.respondError(ctx, err)
		return
	}

	summary := studentParticipationSummary{Student: student}
	for _, r := range rows {
		summary.TotalRegistrations++
		if r.Registration.Status == model.RegistrationStatusRegistered {
			summary.ActiveRegistrations++
		}
		if r.Attendance != nil {
			summary.EventsAttended++
			if r.Attendance.FeedbackRating != nil {
				summary.FeedbackGiven++
			}
		}
	}
	summary.ActivityScore = stats.ActivityScore(summary.TotalRegistrations, summary.EventsAttended, summary.FeedbackGiven)
	summary.ActivityLevel = stats.ActivityLevel(summary.EventsAttended)

	dto.SuccessResponse(ctx, summary)
}
