package service

import (
	"strconv"
	"time"

	"github.com/wb-go/wbf/ginext"

	"campusevents/internal/dto"
	"campusevents/internal/stats"
)

// Default and ceiling for the top-students report.
const (
	defaultTopStudents = 3
	maxTopStudents     = 100
)

func (s *service) EventPopularityReport(ctx *ginext.Context) {
	rows, err := s.repo.EventPopularityRows(ctx.Request.Context())
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, stats.BuildEventPopularity(rows))
}

func (s *service) GetEventStats(ctx *ginext.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	row, err := s.repo.EventStatsRow(ctx.Request.Context(), id)
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, stats.BuildEventStats(time.Now(), row))
}

func (s *service) AttendanceReport(ctx *ginext.Context) {
	rows, err := s.repo.EventAttendanceRows(ctx.Request.Context())
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, stats.BuildAttendanceReport(rows))
}

func (s *service) FeedbackReport(ctx *ginext.Context) {
	rows, err := s.repo.FeedbackRows(ctx.Request.Context())
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, stats.BuildFeedbackReport(rows))
}

func (s *service) TopStudentsReport(ctx *ginext.Context) {
	limit := defaultTopStudents
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTopStudents {
			dto.FieldIncorrectError(ctx, "limit")
			return
		}
		limit = n
	}

	rows, err := s.repo.StudentActivityRows(ctx.Request.Context())
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, stats.BuildTopStudents(rows, limit))
}

func (s *service) CollegePerformanceReport(ctx *ginext.Context) {
	rows, err := s.repo.CollegePerformanceRows(ctx.Request.Context())
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, stats.BuildCollegePerformance(rows))
}

func (s *service) EventTypeReport(ctx *ginext.Context) {
	rows, err := s.repo.EventTypeRows(ctx.Request.Context())
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, stats.BuildEventTypeAnalytics(rows))
}

func (s *service) SystemOverviewReport(ctx *ginext.Context) {
	row, err := s.repo.SystemOverviewRow(ctx.Request.Context())
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, stats.BuildSystemOverview(row))
}

func (s *service) EventRiskReport(ctx *ginext.Context) {
	rows, err := s.repo.UpcomingEventRows(ctx.Request.Context())
	if err != nil {
		s.respondError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, stats.BuildEventRisk(time.Now(), rows))
}
