package api

import (
	"github.com/gin-contrib/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"

	"campusevents/cmd/middleware"
	"campusevents/internal/dto"
	"campusevents/internal/service"
)

type Routers struct {
	Service service.Service
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())
	apiGroup := app.Group("/v1")

	apiGroup.POST("/colleges", r.Service.CreateCollege)
	apiGroup.GET("/colleges", r.Service.ListColleges)
	apiGroup.GET("/colleges/:id", r.Service.GetCollege)

	apiGroup.POST("/events", r.Service.CreateEvent)
	apiGroup.GET("/events", r.Service.ListEvents)
	apiGroup.GET("/events/:id", r.Service.GetEvent)
	apiGroup.PUT("/events/:id", r.Service.UpdateEvent)
	apiGroup.DELETE("/events/:id", r.Service.CancelEvent)
	apiGroup.GET("/events/:id/stats", r.Service.GetEventStats)
	apiGroup.POST("/events/:id/register", r.Service.Register)

	apiGroup.POST("/students", r.Service.CreateStudent)
	apiGroup.GET("/students", r.Service.ListStudents)
	apiGroup.GET("/students/:id", r.Service.GetStudent)
	apiGroup.GET("/students/:id/registrations", r.Service.GetStudentRegistrations)
	apiGroup.GET("/students/:id/summary", r.Service.GetStudentSummary)

	apiGroup.GET("/registrations/:id", r.Service.GetRegistration)
	apiGroup.DELETE("/registrations/:id", r.Service.CancelRegistration)
	apiGroup.POST("/attendance", r.Service.CheckIn)
	apiGroup.POST("/feedback", r.Service.SubmitFeedback)

	apiGroup.GET("/reports/event-popularity", r.Service.EventPopularityReport)
	apiGroup.GET("/reports/attendance", r.Service.AttendanceReport)
	apiGroup.GET("/reports/feedback", r.Service.FeedbackReport)
	apiGroup.GET("/reports/event-type-analytics", r.Service.EventTypeReport)
	apiGroup.GET("/reports/event-risk", r.Service.EventRiskReport)
	apiGroup.GET("/reports/top-active-students", r.Service.TopStudentsReport)
	apiGroup.GET("/reports/college-performance", r.Service.CollegePerformanceReport)
	apiGroup.GET("/reports/system-overview", r.Service.SystemOverviewReport)

	app.GET("/health", func(c *ginext.Context) {
		dto.SuccessResponse(c, map[string]string{"service": "campusevents"})
	})
	app.GET("/metrics", func(c *ginext.Context) {
		promhttp.Handler().ServeHTTP(c.Writer, c.Request)
	})

	return app
}
