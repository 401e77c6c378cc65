/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client address behind a proxy
  3. RequestLogger: zap request logging, request-scoped logger in context
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for the school portal

ROUTE GROUPS:
  /health               Liveness and database check
  /api/students/*       Students, fees, payments, statements, marks, results
  /api/families/*       Combined family payments
  /api/transactions/*   Recent ledger activity
  /api/classes/*        Class fee structures and subjects
  /api/teachers/*       Teachers, salary slips, salary payments
  /api/attendance       Teacher attendance
  /api/holidays/*       School holidays
  /api/scenarios/*      Demo school data

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/school-engine/logger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Student routes
		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Get("/{id}", h.GetStudent)
			r.Get("/{id}/fees", h.GetFeeSummary)
			r.Get("/{id}/payments", h.ListPayments)
			r.Get("/{id}/statement", h.GetStatement)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Put("/{id}/marks/{cycle}", h.SaveMarks)
			r.Get("/{id}/results", h.GetResult)
		})

		// Family routes
		r.Post("/families/payments", h.RecordCombinedPayment)

		// Activity feed across both ledgers
		r.Get("/transactions/recent", h.ListRecentTransactions)

		// Class routes
		r.Route("/classes/{class}", func(r chi.Router) {
			r.Get("/fees", h.GetClassFees)
			r.Put("/fees", h.SaveClassFees)
			r.Put("/subjects", h.SaveSubjects)
		})

		// Teacher routes
		r.Route("/teachers", func(r chi.Router) {
			r.Get("/", h.ListTeachers)
			r.Post("/", h.CreateTeacher)
			r.Get("/{id}", h.GetTeacher)
			r.Get("/{id}/salary", h.GetSalary)
			r.Get("/{id}/salary-payments", h.ListSalaryPayments)
			r.Post("/{id}/salary-payments", h.PaySalary)
		})

		// Attendance routes
		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", h.ListAttendance)
			r.Post("/", h.MarkAttendance)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
