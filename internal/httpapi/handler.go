// Package httpapi serves the REST surface: task, goal, notification, and
// connection workflows plus document upload, download, and summarization
// endpoints. Successful responses wrap the payload in {"data": ...};
// failures in {"error": ..., "violations": [...]}.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"neurolearn/internal/blob"
	"neurolearn/internal/core"
	"neurolearn/internal/summarize"
	"neurolearn/pkg/domain"
	"neurolearn/pkg/optimistic"
)

// maxUploadBytes bounds multipart document uploads.
const maxUploadBytes = 32 << 20

// Server holds handler dependencies.
type Server struct {
	svc              *core.Service
	blobs            blob.Store
	worker           *summarize.Worker
	logger           *zap.Logger
	registry         *prometheus.Registry
	batchConcurrency int
}

// Option customizes server construction.
type Option func(*Server)

// WithBatchConcurrency bounds batch summarization fan-out.
func WithBatchConcurrency(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// WithRegistry attaches a dedicated prometheus registry. When unset the
// default registry backs /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// NewServer constructs the HTTP server.
func NewServer(svc *core.Service, blobs blob.Store, worker *summarize.Worker, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:              svc,
		blobs:            blobs,
		worker:           worker,
		logger:           logger,
		batchConcurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes assembles the router with middleware and all endpoints mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestLogger(s.logger))

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	metricsHandler := promhttp.Handler()
	if s.registry != nil {
		reg = s.registry
		metricsHandler = promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	}
	r.Use(Metrics("neurolearn", reg))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/{id}", s.handleGetTask)
			r.Patch("/{id}", s.handleUpdateTask)
			r.Delete("/{id}", s.handleDeleteTask)
			r.Post("/{id}/complete", s.handleCompleteTask)
			r.Post("/{id}/subtasks/{subtaskID}/toggle", s.handleToggleSubtask)
		})
		r.Route("/goals", func(r chi.Router) {
			r.Get("/", s.handleListGoals)
			r.Post("/", s.handleCreateGoal)
			r.Get("/{id}", s.handleGetGoal)
			r.Patch("/{id}", s.handleUpdateGoal)
			r.Delete("/{id}", s.handleDeleteGoal)
			r.Post("/{id}/progress", s.handleGoalProgress)
			r.Post("/{id}/milestones/{milestoneID}/toggle", s.handleToggleMilestone)
		})
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleListNotifications)
			r.Post("/{id}/read", s.handleMarkNotificationRead)
			r.Post("/read-all", s.handleMarkAllNotificationsRead)
			r.Delete("/{id}", s.handleDeleteNotification)
		})
		r.Route("/connections", func(r chi.Router) {
			r.Get("/", s.handleListConnections)
			r.Post("/", s.handleRequestConnection)
			r.Post("/{id}/respond", s.handleRespondConnection)
			r.Delete("/{id}", s.handleDeleteConnection)
		})
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleUploadDocument)
			r.Get("/{id}", s.handleGetDocument)
			r.Get("/{id}/content", s.handleDocumentContent)
			r.Get("/{id}/summary", s.handleDocumentSummary)
			r.Delete("/{id}", s.handleDeleteDocument)
			r.Post("/{id}/summarize", s.handleSummarizeDocument)
			r.Post("/summarize-batch", s.handleSummarizeBatch)
		})
		r.Get("/summaries/jobs/{id}", s.handleGetSummaryJob)
	})
	return r
}

// Task handlers -----------------------------------------------------------

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filtered := optimistic.Project(s.svc.ListTasks(), q.Get("search"),
		optimistic.Equals(func(t domain.Task) string { return string(t.Status) }, q.Get("status")),
		optimistic.Equals(func(t domain.Task) string { return string(t.Priority) }, q.Get("priority")),
		optimistic.Equals(func(t domain.Task) string { return t.Category }, q.Get("category")),
		optimistic.Equals(func(t domain.Task) string { return t.OwnerID }, q.Get("owner_id")),
	)
	writeJSON(w, http.StatusOK, map[string]any{"data": filtered})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var task domain.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task payload", nil)
		return
	}
	created, res, err := s.svc.CreateTask(r.Context(), task)
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": created})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.svc.GetTask(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": task})
}

type taskPatch struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Status      *domain.TaskStatus   `json:"status"`
	Priority    *domain.TaskPriority `json:"priority"`
	Category    *string              `json:"category"`
	DueDate     *string              `json:"due_date"`
	GoalID      *string              `json:"goal_id"`
	Subtasks    *[]domain.Subtask    `json:"subtasks"`
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch taskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task payload", nil)
		return
	}
	updated, res, err := s.svc.UpdateTask(r.Context(), chi.URLParam(r, "id"), func(t *domain.Task) error {
		if patch.Title != nil {
			t.Title = *patch.Title
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.Category != nil {
			t.Category = *patch.Category
		}
		if patch.DueDate != nil {
			if *patch.DueDate == "" {
				t.DueDate = nil
			} else {
				due, err := parseTimestamp(*patch.DueDate)
				if err != nil {
					return fmt.Errorf("invalid due_date: %w", err)
				}
				t.DueDate = &due
			}
		}
		if patch.GoalID != nil {
			if *patch.GoalID == "" {
				t.GoalID = nil
			} else {
				t.GoalID = patch.GoalID
			}
		}
		if patch.Subtasks != nil {
			subtasks := *patch.Subtasks
			for i := range subtasks {
				if subtasks[i].ID == "" {
					subtasks[i].ID = uuid.NewString()
				}
			}
			t.Subtasks = subtasks
		}
		return nil
	})
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.DeleteTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	task, res, err := s.svc.CompleteTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": task})
}

func (s *Server) handleToggleSubtask(w http.ResponseWriter, r *http.Request) {
	task, res, err := s.svc.ToggleSubtask(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "subtaskID"))
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": task})
}

// Goal handlers -----------------------------------------------------------

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filtered := optimistic.Project(s.svc.ListGoals(), "",
		optimistic.Equals(func(g domain.Goal) string { return string(g.Status) }, q.Get("status")),
		optimistic.Equals(func(g domain.Goal) string { return g.OwnerID }, q.Get("owner_id")),
	)
	writeJSON(w, http.StatusOK, map[string]any{"data": filtered})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var goal domain.Goal
	if err := json.NewDecoder(r.Body).Decode(&goal); err != nil {
		writeError(w, http.StatusBadRequest, "invalid goal payload", nil)
		return
	}
	created, res, err := s.svc.CreateGoal(r.Context(), goal)
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": created})
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, ok := s.svc.GetGoal(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "goal not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": goal})
}

type goalPatch struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Category    *string             `json:"category"`
	Status      *domain.GoalStatus  `json:"status"`
	TargetDate  *string             `json:"target_date"`
	Milestones  *[]domain.Milestone `json:"milestones"`
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var patch goalPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid goal payload", nil)
		return
	}
	updated, res, err := s.svc.UpdateGoal(r.Context(), chi.URLParam(r, "id"), func(g *domain.Goal) error {
		if patch.Title != nil {
			g.Title = *patch.Title
		}
		if patch.Description != nil {
			g.Description = *patch.Description
		}
		if patch.Category != nil {
			g.Category = *patch.Category
		}
		if patch.Status != nil {
			g.Status = *patch.Status
		}
		if patch.TargetDate != nil {
			if *patch.TargetDate == "" {
				g.TargetDate = nil
			} else {
				target, err := parseTimestamp(*patch.TargetDate)
				if err != nil {
					return fmt.Errorf("invalid target_date: %w", err)
				}
				g.TargetDate = &target
			}
		}
		if patch.Milestones != nil {
			milestones := *patch.Milestones
			for i := range milestones {
				if milestones[i].ID == "" {
					milestones[i].ID = uuid.NewString()
				}
			}
			g.Milestones = milestones
		}
		return nil
	})
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.DeleteGoal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Progress *int `json:"progress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Progress == nil {
		writeError(w, http.StatusBadRequest, "progress required", nil)
		return
	}
	goal, res, err := s.svc.UpdateGoalProgress(r.Context(), chi.URLParam(r, "id"), *body.Progress)
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": goal})
}

func (s *Server) handleToggleMilestone(w http.ResponseWriter, r *http.Request) {
	goal, res, err := s.svc.ToggleMilestone(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "milestoneID"))
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": goal})
}

// Notification handlers ---------------------------------------------------

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications := s.svc.ListNotifications(r.URL.Query().Get("user_id"))
	if r.URL.Query().Get("unread") == "true" {
		unread := notifications[:0:0]
		for _, n := range notifications {
			if !n.Read {
				unread = append(unread, n)
			}
		}
		notifications = unread
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": notifications})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	n, res, err := s.svc.MarkNotificationRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": n})
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required", nil)
		return
	}
	touched, res, err := s.svc.MarkAllNotificationsRead(r.Context(), body.UserID)
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]int{"updated": touched}})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.DeleteNotification(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Connection handlers -----------------------------------------------------

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	connections := s.svc.ListConnections()
	user := r.URL.Query().Get("user_id")
	if user != "" {
		mine := connections[:0:0]
		for _, c := range connections {
			if c.RequesterID == user || c.AddresseeID == user {
				mine = append(mine, c)
			}
		}
		connections = mine
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": connections})
}

func (s *Server) handleRequestConnection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequesterID string `json:"requester_id"`
		AddresseeID string `json:"addressee_id"`
		Message     string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequesterID == "" || body.AddresseeID == "" {
		writeError(w, http.StatusBadRequest, "requester_id and addressee_id required", nil)
		return
	}
	conn, res, err := s.svc.RequestConnection(r.Context(), body.RequesterID, body.AddresseeID, body.Message)
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": conn})
}

func (s *Server) handleRespondConnection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status domain.ConnectionStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeError(w, http.StatusBadRequest, "status required", nil)
		return
	}
	conn, res, err := s.svc.RespondConnection(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": conn})
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.DeleteConnection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Document handlers -------------------------------------------------------

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.svc.ListDocuments()
	owner := r.URL.Query().Get("owner_id")
	if owner != "" {
		mine := docs[:0:0]
		for _, d := range docs {
			if d.OwnerID == owner {
				mine = append(mine, d)
			}
		}
		docs = mine
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": docs})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field required", nil)
		return
	}
	defer func() { _ = file.Close() }()

	ownerID := r.FormValue("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id required", nil)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("docs/%s/%s-%s", ownerID, uuid.NewString(), header.Filename)
	info, err := s.blobs.Put(r.Context(), key, file, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"owner_id": ownerID},
	})
	if err != nil {
		s.logger.Error("store upload", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store upload", nil)
		return
	}

	doc, res, err := s.svc.CreateDocument(r.Context(), domain.Document{
		OwnerID:     ownerID,
		Name:        header.Filename,
		ContentType: contentType,
		SizeBytes:   info.Size,
		BlobKey:     key,
	})
	if err != nil {
		if _, delErr := s.blobs.Delete(r.Context(), key); delErr != nil {
			s.logger.Warn("orphaned upload blob", zap.String("key", key), zap.Error(delErr))
		}
		s.writeServiceError(w, err, res)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": doc})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.svc.GetDocument(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "document not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": doc})
}

func (s *Server) handleDocumentContent(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.svc.GetDocument(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "document not found", nil)
		return
	}
	s.streamBlob(w, r, doc.BlobKey, doc.ContentType)
}

func (s *Server) handleDocumentSummary(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.svc.GetDocument(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "document not found", nil)
		return
	}
	if doc.SummaryBlobKey == nil {
		writeError(w, http.StatusNotFound, "summary not available", nil)
		return
	}
	s.streamBlob(w, r, *doc.SummaryBlobKey, "text/plain; charset=utf-8")
}

func (s *Server) streamBlob(w http.ResponseWriter, r *http.Request, key, contentType string) {
	info, rc, err := s.blobs.Get(r.Context(), key)
	if err != nil {
		s.logger.Error("read blob", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read content", nil)
		return
	}
	defer func() { _ = rc.Close() }()
	if contentType == "" {
		contentType = info.ContentType
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size))
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream blob interrupted", zap.String("key", key), zap.Error(err))
	}
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, ok := s.svc.GetDocument(id)
	if !ok {
		writeError(w, http.StatusNotFound, "document not found", nil)
		return
	}
	res, err := s.svc.DeleteDocument(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err, res)
		return
	}
	if _, err := s.blobs.Delete(r.Context(), doc.BlobKey); err != nil {
		s.logger.Warn("delete blob", zap.String("key", doc.BlobKey), zap.Error(err))
	}
	if doc.SummaryBlobKey != nil {
		if _, err := s.blobs.Delete(r.Context(), *doc.SummaryBlobKey); err != nil {
			s.logger.Warn("delete summary blob", zap.String("key", *doc.SummaryBlobKey), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summarization handlers --------------------------------------------------

func (s *Server) handleSummarizeDocument(w http.ResponseWriter, r *http.Request) {
	if s.worker == nil {
		writeError(w, http.StatusServiceUnavailable, "summarization not configured", nil)
		return
	}
	requestedBy := r.URL.Query().Get("requested_by")
	job, err := s.worker.Enqueue(r.Context(), chi.URLParam(r, "id"), requestedBy)
	if err != nil {
		if domain.IsNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		writeError(w, http.StatusConflict, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"data": job})
}

func (s *Server) handleSummarizeBatch(w http.ResponseWriter, r *http.Request) {
	if s.worker == nil {
		writeError(w, http.StatusServiceUnavailable, "summarization not configured", nil)
		return
	}
	var body struct {
		DocumentIDs []string `json:"document_ids"`
		RequestedBy string   `json:"requested_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.DocumentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "document_ids required", nil)
		return
	}
	results := summarize.EnqueueBatch(r.Context(), s.worker, body.DocumentIDs, body.RequestedBy, s.batchConcurrency)
	writeJSON(w, http.StatusAccepted, map[string]any{"data": results})
}

func (s *Server) handleGetSummaryJob(w http.ResponseWriter, r *http.Request) {
	if s.worker == nil {
		writeError(w, http.StatusServiceUnavailable, "summarization not configured", nil)
		return
	}
	job, ok := s.worker.GetJob(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": job})
}

// Shared helpers ----------------------------------------------------------

// parseTimestamp accepts RFC 3339 timestamps, with or without a time
// component.
func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", value)
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error, res domain.Result) {
	var rve domain.RuleViolationError
	switch {
	case errors.As(err, &rve):
		writeError(w, http.StatusUnprocessableEntity, "request blocked by rules", rve.Result.Violations)
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error(), res.Violations)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string, violations []domain.Violation) {
	body := map[string]any{"error": msg}
	if len(violations) > 0 {
		body["violations"] = violations
	}
	writeJSON(w, status, body)
}
