package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gradebook-hub/gradebook/internal/application/command"
	"github.com/gradebook-hub/gradebook/internal/application/query"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
	"github.com/gradebook-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    s.deps.ServiceName,
		"version": s.deps.Version,
		"endpoints": map[string]string{
			"health":             "/health",
			"students":           "/students/",
			"search":             "/students/search/?name=",
			"scores":             "/students/{id}/scores/",
			"student_average":    "/students/{id}/average-score/",
			"top_scorer":         "/students/top-scorer/{subject}",
			"department_average": "/students/departments/{department}/average-score/",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]any{
			"status":  "healthy",
			"uptime":  s.Uptime().String(),
			"version": s.deps.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSONErrorWithDetails(w, r, http.StatusServiceUnavailable, "not_ready",
				"Service is not ready", status.Message)
			return
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreateStudent handles POST /students/
func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.deps.CreateStudent.Handle(r.Context(), command.CreateStudentCommand{
		Name:          req.Name,
		Department:    req.Department,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, st)
}

// handleListStudents handles GET /students/?skip=&limit=
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	list, err := s.deps.ListStudents.Handle(r.Context(), query.ListStudentsQuery{
		Skip:  p.Skip,
		Limit: p.Limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if list == nil {
		list = []*student.Student{}
	}

	writeJSONWithMeta(w, r, http.StatusOK, list, &ResponseMeta{
		Count: len(list),
		Skip:  p.Skip,
		Limit: p.Limit,
	})
}

// handleSearchStudents handles GET /students/search/?name=
func (s *Server) handleSearchStudents(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.SearchStudents.Handle(r.Context(), query.SearchStudentsQuery{
		Name: r.URL.Query().Get("name"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if list == nil {
		list = []*student.Student{}
	}

	writeJSONWithMeta(w, r, http.StatusOK, list, &ResponseMeta{Count: len(list)})
}

// handleGetStudent handles GET /students/{id}
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.deps.GetStudent.Handle(r.Context(), query.GetStudentQuery{StudentID: id})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, st)
}

// handleDeleteStudent handles DELETE /students/{id}
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	err = s.deps.DeleteStudent.Handle(r.Context(), command.DeleteStudentCommand{
		StudentID:     id,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleUpsertScore handles POST /students/{id}/scores/
// Both a new and an updated score answer 201.
func (s *Server) handleUpsertScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req UpsertScoreRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.UpsertScore.Handle(r.Context(), command.UpsertScoreCommand{
		StudentID:     id,
		Subject:       req.Subject,
		Value:         *req.Score,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, res.Score)
}

// handleStudentAverage handles GET /students/{id}/average-score/
func (s *Server) handleStudentAverage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	avg, err := s.deps.StudentAverage.Handle(r.Context(), query.GetStudentAverageQuery{StudentID: id})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, avg)
}

// handleTopScorer handles GET /students/top-scorer/{subject}
func (s *Server) handleTopScorer(w http.ResponseWriter, r *http.Request) {
	top, err := s.deps.TopScorer.Handle(r.Context(), query.GetTopScorerQuery{
		Subject: r.PathValue("subject"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, top)
}

// handleDepartmentAverage handles GET /students/departments/{department}/average-score/
func (s *Server) handleDepartmentAverage(w http.ResponseWriter, r *http.Request) {
	avg, err := s.deps.DepartmentAverage.Handle(r.Context(), query.GetDepartmentAverageQuery{
		Department: r.PathValue("department"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, avg)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeError maps an application error onto the response status:
// NotFound 404, Validation 422, undecodable body 400, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")

	case errors.Is(err, errBadRequest):
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "bad_request",
			"Request body must be valid JSON", err.Error())

	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", messageOr(err, "Resource not found"))

	case shared.IsValidation(err):
		writeJSONErrorWithDetails(w, r, http.StatusUnprocessableEntity, "validation_error",
			messageOr(err, "Invalid input"), shared.FieldOf(err))

	default:
		logger.FromContext(r.Context()).Error("request failed",
			slog.String("path", r.URL.Path),
			logger.Err(err),
		)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}

func messageOr(err error, fallback string) string {
	if msg := shared.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}
