package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"campusevents/internal/api/api"
	"campusevents/internal/dto"
	"campusevents/internal/model"
	"campusevents/internal/repo"
	"campusevents/internal/service"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

// fakeRepo is an in-memory Repository with the same guard semantics as the
// Postgres implementation. A single mutex stands in for the row locks.
type fakeRepo struct {
	mu            sync.Mutex
	colleges      map[uuid.UUID]model.College
	events        map[uuid.UUID]model.Event
	students      map[uuid.UUID]model.Student
	registrations map[uuid.UUID]model.Registration
	attendance    map[uuid.UUID]model.Attendance
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		colleges:      make(map[uuid.UUID]model.College),
		events:        make(map[uuid.UUID]model.Event),
		students:      make(map[uuid.UUID]model.Student),
		registrations: make(map[uuid.UUID]model.Registration),
		attendance:    make(map[uuid.UUID]model.Attendance),
	}
}

func (f *fakeRepo) CreateCollege(_ context.Context, c *model.College) (*model.College, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.colleges {
		if existing.Code == c.Code {
			return nil, repo.ErrCollegeExists
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	f.colleges[c.ID] = *c
	return c, nil
}

func (f *fakeRepo) GetCollegeByID(_ context.Context, id uuid.UUID) (*model.College, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.colleges[id]
	if !ok {
		return nil, repo.ErrCollegeNotFound
	}
	return &c, nil
}

func (f *fakeRepo) ListColleges(_ context.Context) ([]repo.CollegeSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repo.CollegeSummary
	for _, c := range f.colleges {
		out = append(out, repo.CollegeSummary{College: c})
	}
	return out, nil
}

func (f *fakeRepo) CreateEvent(_ context.Context, e *model.Event) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.colleges[e.CollegeID]; !ok {
		return nil, repo.ErrCollegeNotFound
	}
	if !e.EndDatetime.After(e.StartDatetime) {
		return nil, repo.ErrInvalidEventTimes
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	f.events[e.ID] = *e
	return e, nil
}

func (f *fakeRepo) GetEventByID(_ context.Context, id uuid.UUID) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repo.ErrEventNotFound
	}
	return &e, nil
}

func (f *fakeRepo) ListEvents(_ context.Context, filter repo.EventFilter) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := filter.Status
	if status == "" {
		status = model.EventStatusActive
	}
	var out []model.Event
	for _, e := range f.events {
		if e.Status != status {
			continue
		}
		if filter.CollegeID != nil && e.CollegeID != *filter.CollegeID {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRepo) UpdateEventTx(_ context.Context, id uuid.UUID, upd repo.EventUpdate) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repo.ErrEventNotFound
	}
	if upd.Title != nil {
		e.Title = *upd.Title
	}
	if upd.MaxCapacity != nil {
		e.MaxCapacity = upd.MaxCapacity
	}
	if upd.StartDatetime != nil {
		e.StartDatetime = *upd.StartDatetime
	}
	if upd.EndDatetime != nil {
		e.EndDatetime = *upd.EndDatetime
	}
	if upd.RegistrationDeadline != nil {
		e.RegistrationDeadline = upd.RegistrationDeadline
	}
	if upd.Status != nil {
		e.Status = *upd.Status
	}
	if !e.EndDatetime.After(e.StartDatetime) {
		return nil, repo.ErrInvalidEventTimes
	}
	e.UpdatedAt = time.Now()
	f.events[id] = e
	return &e, nil
}

func (f *fakeRepo) CancelEventTx(_ context.Context, id uuid.UUID) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok || e.Status != model.EventStatusActive {
		return nil, repo.ErrInvalidState
	}
	e.Status = model.EventStatusCancelled
	f.events[id] = e
	return &e, nil
}

func (f *fakeRepo) CompleteEventTx(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok || e.Status != model.EventStatusActive || e.EndDatetime.After(time.Now()) {
		return false, nil
	}
	e.Status = model.EventStatusCompleted
	f.events[id] = e
	return true, nil
}

func (f *fakeRepo) CreateStudent(_ context.Context, s *model.Student) (*model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.colleges[s.CollegeID]; !ok {
		return nil, repo.ErrCollegeNotFound
	}
	for _, existing := range f.students {
		if existing.Email == s.Email {
			return nil, repo.ErrStudentExists
		}
	}
	s.ID = uuid.New()
	s.IsActive = true
	s.CreatedAt = time.Now()
	f.students[s.ID] = *s
	return s, nil
}

func (f *fakeRepo) GetStudentByID(_ context.Context, id uuid.UUID) (*model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok {
		return nil, repo.ErrStudentNotFound
	}
	return &s, nil
}

func (f *fakeRepo) ListStudents(_ context.Context, collegeID *uuid.UUID) ([]repo.StudentSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repo.StudentSummary
	for _, s := range f.students {
		if collegeID != nil && s.CollegeID != *collegeID {
			continue
		}
		out = append(out, repo.StudentSummary{Student: s})
	}
	return out, nil
}

func (f *fakeRepo) activeCountLocked(eventID uuid.UUID) int {
	count := 0
	for _, r := range f.registrations {
		if r.EventID == eventID && r.Status == model.RegistrationStatusRegistered {
			count++
		}
	}
	return count
}

func (f *fakeRepo) RegisterTx(_ context.Context, eventID, studentID uuid.UUID) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.events[eventID]
	if !ok {
		return nil, repo.ErrEventNotFound
	}
	if e.Status != model.EventStatusActive {
		return nil, repo.ErrEventInactive
	}
	s, ok := f.students[studentID]
	if !ok || !s.IsActive {
		return nil, repo.ErrStudentNotFound
	}
	if e.RegistrationDeadline != nil && time.Now().After(*e.RegistrationDeadline) {
		return nil, repo.ErrDeadlinePassed
	}
	if e.MaxCapacity != nil && f.activeCountLocked(eventID) >= *e.MaxCapacity {
		return nil, repo.ErrCapacityExceeded
	}
	for _, r := range f.registrations {
		if r.EventID == eventID && r.StudentID == studentID && r.Status != model.RegistrationStatusCancelled {
			return nil, repo.ErrDuplicateRegistration
		}
	}

	reg := model.Registration{
		ID:           uuid.New(),
		EventID:      eventID,
		StudentID:    studentID,
		Status:       model.RegistrationStatusRegistered,
		RegisteredAt: time.Now(),
	}
	f.registrations[reg.ID] = reg
	return &reg, nil
}

func (f *fakeRepo) CancelRegistrationTx(_ context.Context, id uuid.UUID, reason string) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.registrations[id]
	if !ok {
		return nil, repo.ErrRegistrationNotFound
	}
	if r.Status != model.RegistrationStatusRegistered {
		return nil, repo.ErrInvalidState
	}
	now := time.Now()
	r.Status = model.RegistrationStatusCancelled
	r.CancelledAt = &now
	if reason != "" {
		r.CancellationReason = &reason
	}
	f.registrations[id] = r
	return &r, nil
}

func (f *fakeRepo) CheckInTx(_ context.Context, registrationID uuid.UUID, method string) (*model.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.registrations[registrationID]
	if !ok || r.Status != model.RegistrationStatusRegistered {
		return nil, repo.ErrRegistrationNotActive
	}
	for _, a := range f.attendance {
		if a.RegistrationID == registrationID {
			return nil, repo.ErrAlreadyCheckedIn
		}
	}
	att := model.Attendance{
		ID:             uuid.New(),
		RegistrationID: registrationID,
		CheckedInAt:    time.Now(),
		CheckInMethod:  method,
	}
	f.attendance[att.ID] = att
	return &att, nil
}

func (f *fakeRepo) SubmitFeedbackTx(_ context.Context, attendanceID uuid.UUID, rating int, comment *string) (*model.Attendance, error) {
	if rating < 1 || rating > 5 {
		return nil, repo.ErrInvalidRating
	}
	if comment != nil && utf8.RuneCountInString(*comment) > repo.MaxCommentLength {
		return nil, repo.ErrCommentTooLong
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attendance[attendanceID]
	if !ok {
		return nil, repo.ErrAttendanceNotFound
	}
	if a.FeedbackRating != nil {
		return nil, repo.ErrFeedbackAlreadySubmitted
	}
	now := time.Now()
	a.FeedbackRating = &rating
	a.FeedbackComment = comment
	a.FeedbackSubmittedAt = &now
	f.attendance[attendanceID] = a
	return &a, nil
}

func (f *fakeRepo) GetRegistrationByID(_ context.Context, id uuid.UUID) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.registrations[id]
	if !ok {
		return nil, repo.ErrRegistrationNotFound
	}
	return &r, nil
}

func (f *fakeRepo) StudentRegistrations(_ context.Context, studentID uuid.UUID) ([]repo.StudentRegistrationRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repo.StudentRegistrationRow
	for _, r := range f.registrations {
		if r.StudentID != studentID {
			continue
		}
		e := f.events[r.EventID]
		row := repo.StudentRegistrationRow{
			Registration: r,
			EventTitle:   e.Title,
			EventType:    e.EventType,
			StartAt:      e.StartDatetime,
			EndAt:        e.EndDatetime,
		}
		for _, a := range f.attendance {
			if a.RegistrationID == r.ID {
				att := a
				row.Attendance = &att
				break
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeRepo) EventPopularityRows(_ context.Context) ([]repo.EventPopularityRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repo.EventPopularityRow
	for _, e := range f.events {
		if e.Status != model.EventStatusActive {
			continue
		}
		row := repo.EventPopularityRow{
			EventID:       e.ID,
			Title:         e.Title,
			EventType:     e.EventType,
			StartDatetime: e.StartDatetime,
			MaxCapacity:   e.MaxCapacity,
		}
		for _, r := range f.registrations {
			if r.EventID != e.ID {
				continue
			}
			row.TotalRegistrations++
			if r.Status == model.RegistrationStatusRegistered {
				row.ActiveRegistrations++
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeRepo) EventStatsRow(_ context.Context, eventID uuid.UUID) (*repo.EventStatsRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return nil, repo.ErrEventNotFound
	}
	row := repo.EventStatsRow{
		EventID:       e.ID,
		Title:         e.Title,
		EventType:     e.EventType,
		StartDatetime: e.StartDatetime,
		EndDatetime:   e.EndDatetime,
		MaxCapacity:   e.MaxCapacity,
		Status:        e.Status,
	}
	ratingSum := 0
	for _, r := range f.registrations {
		if r.EventID != eventID {
			continue
		}
		row.TotalRegistrations++
		switch r.Status {
		case model.RegistrationStatusRegistered:
			row.ActiveRegistrations++
		case model.RegistrationStatusCancelled:
			row.CancelledRegistrations++
		}
		for _, a := range f.attendance {
			if a.RegistrationID != r.ID {
				continue
			}
			row.TotalAttendance++
			if a.FeedbackRating != nil {
				row.FeedbackCount++
				ratingSum += *a.FeedbackRating
				row.RatingCounts[*a.FeedbackRating-1]++
			}
		}
	}
	if row.FeedbackCount > 0 {
		avg := float64(ratingSum) / float64(row.FeedbackCount)
		row.AvgRating = &avg
	}
	return &row, nil
}

func (f *fakeRepo) EventAttendanceRows(_ context.Context) ([]repo.EventAttendanceRow, error) {
	return nil, nil
}

func (f *fakeRepo) FeedbackRows(_ context.Context) ([]repo.EventFeedbackRow, error) {
	return nil, nil
}

func (f *fakeRepo) StudentActivityRows(_ context.Context) ([]repo.StudentActivityRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repo.StudentActivityRow
	for _, s := range f.students {
		row := repo.StudentActivityRow{StudentID: s.ID, Name: s.Name, Email: s.Email}
		for _, r := range f.registrations {
			if r.StudentID != s.ID {
				continue
			}
			row.TotalRegistrations++
			for _, a := range f.attendance {
				if a.RegistrationID == r.ID {
					row.EventsAttended++
					if a.FeedbackRating != nil {
						row.FeedbackGiven++
					}
				}
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeRepo) CollegePerformanceRows(_ context.Context) ([]repo.CollegePerformanceRow, error) {
	return nil, nil
}

func (f *fakeRepo) EventTypeRows(_ context.Context) ([]repo.EventTypeRow, error) {
	return nil, nil
}

func (f *fakeRepo) SystemOverviewRow(_ context.Context) (*repo.SystemOverviewRow, error) {
	return &repo.SystemOverviewRow{}, nil
}

func (f *fakeRepo) UpcomingEventRows(_ context.Context) ([]repo.UpcomingEventRow, error) {
	return nil, nil
}

func (f *fakeRepo) MigrateUp(string) error   { return nil }
func (f *fakeRepo) MigrateDown(string) error { return nil }

type envelope struct {
	Status string          `json:"status"`
	Error  *dto.Error      `json:"error"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer() (*fakeRepo, http.Handler) {
	f := newFakeRepo()
	svc := service.NewService(f, &zlog.Logger, nil)
	return f, api.NewRouters(&api.Routers{Service: svc})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func seedCollege(t *testing.T, h http.Handler) uuid.UUID {
	t.Helper()
	code, env := doJSON(t, h, http.MethodPost, "/v1/colleges", map[string]any{
		"name": "Institute of Technology",
		"code": "iot",
	})
	if code != http.StatusCreated {
		t.Fatalf("create college: status %d, error %+v", code, env.Error)
	}
	var c model.College
	if err := json.Unmarshal(env.Data, &c); err != nil {
		t.Fatalf("decode college: %v", err)
	}
	return c.ID
}

func seedEvent(t *testing.T, h http.Handler, collegeID uuid.UUID, capacity *int) model.Event {
	t.Helper()
	body := map[string]any{
		"college_id":     collegeID,
		"title":          "Spring Hackathon",
		"event_type":     "hackathon",
		"start_datetime": time.Now().Add(24 * time.Hour),
		"end_datetime":   time.Now().Add(48 * time.Hour),
		"created_by":     "admin@iot.edu",
	}
	if capacity != nil {
		body["max_capacity"] = *capacity
	}
	code, env := doJSON(t, h, http.MethodPost, "/v1/events", body)
	if code != http.StatusCreated {
		t.Fatalf("create event: status %d, error %+v", code, env.Error)
	}
	var e model.Event
	if err := json.Unmarshal(env.Data, &e); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return e
}

func seedStudent(t *testing.T, h http.Handler, collegeID uuid.UUID, n int) model.Student {
	t.Helper()
	code, env := doJSON(t, h, http.MethodPost, "/v1/students", map[string]any{
		"college_id":     collegeID,
		"email":          fmt.Sprintf("student%d@iot.edu", n),
		"name":           fmt.Sprintf("Student %d", n),
		"student_number": fmt.Sprintf("CS-%03d", n),
	})
	if code != http.StatusCreated {
		t.Fatalf("create student %d: status %d, error %+v", n, code, env.Error)
	}
	var s model.Student
	if err := json.Unmarshal(env.Data, &s); err != nil {
		t.Fatalf("decode student: %v", err)
	}
	return s
}

func register(t *testing.T, h http.Handler, eventID, studentID uuid.UUID) (int, envelope) {
	t.Helper()
	return doJSON(t, h, http.MethodPost, "/v1/events/"+eventID.String()+"/register",
		map[string]any{"student_id": studentID})
}

func TestParticipationFlow(t *testing.T) {
	_, h := newTestServer()

	collegeID := seedCollege(t, h)
	capacity := 2
	event := seedEvent(t, h, collegeID, &capacity)

	s1 := seedStudent(t, h, collegeID, 1)
	s2 := seedStudent(t, h, collegeID, 2)
	s3 := seedStudent(t, h, collegeID, 3)

	code, env := register(t, h, event.ID, s1.ID)
	if code != http.StatusCreated {
		t.Fatalf("first registration: status %d, error %+v", code, env.Error)
	}
	var reg1 model.Registration
	if err := json.Unmarshal(env.Data, &reg1); err != nil {
		t.Fatalf("decode registration: %v", err)
	}

	// Re-registering while a seat is still free is a duplicate. Once the
	// event fills, the capacity guard fires first, so this must come before
	// the second admission.
	code, env = register(t, h, event.ID, s1.ID)
	if code != http.StatusConflict || env.Error == nil || env.Error.Code != dto.RegistrationDuplicate {
		t.Fatalf("expected REGISTRATION_DUPLICATE, got status %d error %+v", code, env.Error)
	}

	if code, _ = register(t, h, event.ID, s2.ID); code != http.StatusCreated {
		t.Fatalf("second registration: status %d", code)
	}

	// Third student hits the capacity guard.
	code, env = register(t, h, event.ID, s3.ID)
	if code != http.StatusConflict || env.Error == nil || env.Error.Code != dto.CapacityExceeded {
		t.Fatalf("expected CAPACITY_EXCEEDED, got status %d error %+v", code, env.Error)
	}

	// A full event reports capacity before the duplicate check.
	code, env = register(t, h, event.ID, s1.ID)
	if code != http.StatusConflict || env.Error == nil || env.Error.Code != dto.CapacityExceeded {
		t.Fatalf("expected CAPACITY_EXCEEDED for duplicate on full event, got status %d error %+v", code, env.Error)
	}

	// Check in exactly once.
	code, env = doJSON(t, h, http.MethodPost, "/v1/attendance", map[string]any{
		"registration_id": reg1.ID,
		"check_in_method": "qr_code",
	})
	if code != http.StatusCreated {
		t.Fatalf("check-in: status %d, error %+v", code, env.Error)
	}
	var att model.Attendance
	if err := json.Unmarshal(env.Data, &att); err != nil {
		t.Fatalf("decode attendance: %v", err)
	}

	code, env = doJSON(t, h, http.MethodPost, "/v1/attendance", map[string]any{
		"registration_id": reg1.ID,
	})
	if code != http.StatusConflict || env.Error == nil || env.Error.Code != dto.AlreadyCheckedIn {
		t.Fatalf("expected ALREADY_CHECKED_IN, got status %d error %+v", code, env.Error)
	}

	// Feedback requires attendance and is write-once.
	code, env = doJSON(t, h, http.MethodPost, "/v1/feedback", map[string]any{
		"attendance_id": att.ID,
		"rating":        5,
		"comment":       "great event",
	})
	if code != http.StatusOK {
		t.Fatalf("feedback: status %d, error %+v", code, env.Error)
	}

	code, env = doJSON(t, h, http.MethodPost, "/v1/feedback", map[string]any{
		"attendance_id": att.ID,
		"rating":        1,
	})
	if code != http.StatusConflict || env.Error == nil || env.Error.Code != dto.FeedbackAlreadyExists {
		t.Fatalf("expected FEEDBACK_ALREADY_SUBMITTED, got status %d error %+v", code, env.Error)
	}

	// The stats view sees the event as full with one attendee.
	code, env = doJSON(t, h, http.MethodGet, "/v1/events/"+event.ID.String()+"/stats", nil)
	if code != http.StatusOK {
		t.Fatalf("event stats: status %d, error %+v", code, env.Error)
	}
	var stats struct {
		ActiveRegistrations int     `json:"active_registrations"`
		TotalAttendance     int     `json:"total_attendance"`
		RegistrationStatus  string  `json:"registration_status"`
		AvgRating           float64 `json:"avg_rating"`
	}
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.ActiveRegistrations != 2 || stats.TotalAttendance != 1 {
		t.Errorf("stats counts wrong: %+v", stats)
	}
	if stats.RegistrationStatus != "Full" {
		t.Errorf("expected Full bucket, got %q", stats.RegistrationStatus)
	}
	if stats.AvgRating != 5 {
		t.Errorf("avg rating = %v, want 5", stats.AvgRating)
	}
}

func TestCancellationFreesSlot(t *testing.T) {
	_, h := newTestServer()

	collegeID := seedCollege(t, h)
	capacity := 1
	event := seedEvent(t, h, collegeID, &capacity)
	s1 := seedStudent(t, h, collegeID, 1)
	s2 := seedStudent(t, h, collegeID, 2)

	code, env := register(t, h, event.ID, s1.ID)
	if code != http.StatusCreated {
		t.Fatalf("registration: status %d", code)
	}
	var reg model.Registration
	if err := json.Unmarshal(env.Data, &reg); err != nil {
		t.Fatalf("decode registration: %v", err)
	}

	if code, _ = register(t, h, event.ID, s2.ID); code != http.StatusConflict {
		t.Fatalf("expected conflict for full event, got %d", code)
	}

	code, env = doJSON(t, h, http.MethodDelete, "/v1/registrations/"+reg.ID.String(),
		map[string]any{"reason": "schedule clash"})
	if code != http.StatusOK {
		t.Fatalf("cancel: status %d, error %+v", code, env.Error)
	}

	// Slot is free again and the cancelled student may re-register.
	if code, env = register(t, h, event.ID, s2.ID); code != http.StatusCreated {
		t.Fatalf("registration after cancel: status %d, error %+v", code, env.Error)
	}

	// Second cancel of the same registration is rejected.
	code, env = doJSON(t, h, http.MethodDelete, "/v1/registrations/"+reg.ID.String(), nil)
	if code != http.StatusConflict || env.Error == nil || env.Error.Code != dto.InvalidState {
		t.Fatalf("expected INVALID_STATE, got status %d error %+v", code, env.Error)
	}
}

func TestRegistrationGuards(t *testing.T) {
	f, h := newTestServer()

	collegeID := seedCollege(t, h)
	event := seedEvent(t, h, collegeID, nil)
	student := seedStudent(t, h, collegeID, 1)

	// Deadline in the past.
	past := time.Now().Add(-time.Hour)
	f.mu.Lock()
	e := f.events[event.ID]
	e.RegistrationDeadline = &past
	f.events[event.ID] = e
	f.mu.Unlock()

	code, env := register(t, h, event.ID, student.ID)
	if code != http.StatusBadRequest || env.Error == nil || env.Error.Code != dto.DeadlinePassed {
		t.Fatalf("expected DEADLINE_PASSED, got status %d error %+v", code, env.Error)
	}

	// Cancelled event refuses admission.
	f.mu.Lock()
	e = f.events[event.ID]
	e.RegistrationDeadline = nil
	e.Status = model.EventStatusCancelled
	f.events[event.ID] = e
	f.mu.Unlock()

	code, env = register(t, h, event.ID, student.ID)
	if code != http.StatusBadRequest || env.Error == nil || env.Error.Code != dto.EventInactive {
		t.Fatalf("expected EVENT_INACTIVE, got status %d error %+v", code, env.Error)
	}

	// Unknown event and unknown student.
	code, env = register(t, h, uuid.New(), student.ID)
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != dto.EventNotFound {
		t.Fatalf("expected EVENT_NOT_FOUND, got status %d error %+v", code, env.Error)
	}

	f.mu.Lock()
	e = f.events[event.ID]
	e.Status = model.EventStatusActive
	f.events[event.ID] = e
	f.mu.Unlock()

	code, env = register(t, h, event.ID, uuid.New())
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != dto.StudentNotFound {
		t.Fatalf("expected STUDENT_NOT_FOUND, got status %d error %+v", code, env.Error)
	}
}

func TestConcurrentRegistrationRespectsCapacity(t *testing.T) {
	_, h := newTestServer()

	collegeID := seedCollege(t, h)
	capacity := 5
	event := seedEvent(t, h, collegeID, &capacity)

	const attempts = 100
	students := make([]model.Student, attempts)
	for i := range students {
		students[i] = seedStudent(t, h, collegeID, i+1)
	}

	var wg sync.WaitGroup
	results := make(chan int, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(studentID uuid.UUID) {
			defer wg.Done()
			code, _ := register(t, h, event.ID, studentID)
			results <- code
		}(students[i].ID)
	}
	wg.Wait()
	close(results)

	created, rejected := 0, 0
	for code := range results {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			rejected++
		default:
			t.Errorf("unexpected status %d", code)
		}
	}

	if created != capacity {
		t.Errorf("created = %d, want %d", created, capacity)
	}
	if rejected != attempts-capacity {
		t.Errorf("rejected = %d, want %d", rejected, attempts-capacity)
	}
}

func TestGetRegistration(t *testing.T) {
	_, h := newTestServer()

	collegeID := seedCollege(t, h)
	event := seedEvent(t, h, collegeID, nil)
	student := seedStudent(t, h, collegeID, 1)

	code, env := register(t, h, event.ID, student.ID)
	if code != http.StatusCreated {
		t.Fatalf("registration: status %d", code)
	}
	var reg model.Registration
	if err := json.Unmarshal(env.Data, &reg); err != nil {
		t.Fatalf("decode registration: %v", err)
	}

	code, env = doJSON(t, h, http.MethodGet, "/v1/registrations/"+reg.ID.String(), nil)
	if code != http.StatusOK {
		t.Fatalf("get registration: status %d, error %+v", code, env.Error)
	}
	var got model.Registration
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode registration: %v", err)
	}
	if got.ID != reg.ID || got.EventID != event.ID || got.StudentID != student.ID {
		t.Errorf("registration mismatch: %+v", got)
	}

	code, env = doJSON(t, h, http.MethodGet, "/v1/registrations/"+uuid.NewString(), nil)
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != dto.RegistrationNotFound {
		t.Fatalf("expected REGISTRATION_NOT_FOUND, got status %d error %+v", code, env.Error)
	}
}

// unavailableRepo simulates storage that cannot start a transaction.
type unavailableRepo struct {
	*fakeRepo
}

func (u *unavailableRepo) RegisterTx(context.Context, uuid.UUID, uuid.UUID) (*model.Registration, error) {
	return nil, fmt.Errorf("failed to start transaction: %w", repo.ErrUnavailable)
}

func TestStorageUnavailableIsRetryable(t *testing.T) {
	svc := service.NewService(&unavailableRepo{newFakeRepo()}, &zlog.Logger, nil)
	h := api.NewRouters(&api.Routers{Service: svc})

	code, env := doJSON(t, h, http.MethodPost, "/v1/events/"+uuid.NewString()+"/register",
		map[string]any{"student_id": uuid.New()})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if env.Error == nil || env.Error.Code != dto.ServiceUnavailable {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %+v", env.Error)
	}
}

func TestFeedbackValidation(t *testing.T) {
	_, h := newTestServer()

	code, env := doJSON(t, h, http.MethodPost, "/v1/feedback", map[string]any{
		"attendance_id": uuid.New(),
		"rating":        7,
	})
	if code != http.StatusBadRequest {
		t.Fatalf("rating 7: status %d, error %+v", code, env.Error)
	}

	code, env = doJSON(t, h, http.MethodPost, "/v1/feedback", map[string]any{
		"attendance_id": uuid.New(),
		"rating":        4,
	})
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != dto.AttendanceNotFound {
		t.Fatalf("expected ATTENDANCE_NOT_FOUND, got status %d error %+v", code, env.Error)
	}
}

func TestStudentSummary(t *testing.T) {
	_, h := newTestServer()

	collegeID := seedCollege(t, h)
	event := seedEvent(t, h, collegeID, nil)
	student := seedStudent(t, h, collegeID, 1)

	code, env := register(t, h, event.ID, student.ID)
	if code != http.StatusCreated {
		t.Fatalf("registration: status %d", code)
	}
	var reg model.Registration
	if err := json.Unmarshal(env.Data, &reg); err != nil {
		t.Fatalf("decode registration: %v", err)
	}

	code, env = doJSON(t, h, http.MethodPost, "/v1/attendance", map[string]any{
		"registration_id": reg.ID,
	})
	if code != http.StatusCreated {
		t.Fatalf("check-in: status %d, error %+v", code, env.Error)
	}

	code, env = doJSON(t, h, http.MethodGet, "/v1/students/"+student.ID.String()+"/summary", nil)
	if code != http.StatusOK {
		t.Fatalf("summary: status %d, error %+v", code, env.Error)
	}
	var summary struct {
		TotalRegistrations int     `json:"total_registrations"`
		EventsAttended     int     `json:"events_attended"`
		ActivityScore      float64 `json:"activity_score"`
		ActivityLevel      string  `json:"activity_level"`
	}
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalRegistrations != 1 || summary.EventsAttended != 1 {
		t.Errorf("summary counts wrong: %+v", summary)
	}
	// 1 registration + 1 attendance, no feedback.
	if summary.ActivityScore != 3 {
		t.Errorf("activity score = %v, want 3", summary.ActivityScore)
	}
	if summary.ActivityLevel != "moderately_active" {
		t.Errorf("activity level = %q", summary.ActivityLevel)
	}
}
