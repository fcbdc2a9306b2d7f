// Package client is the Go SDK for the neurolearn HTTP API. Errors carry a
// failure kind so callers running the optimistic executor can classify
// rollbacks: a non-2xx response is a rejection, an undecodable 2xx body is
// malformed, and anything that never produced a response is a transport
// failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"neurolearn/pkg/domain"
	"neurolearn/pkg/optimistic"
)

// SummaryJob mirrors the server's summarization job record.
type SummaryJob struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"document_id"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	SummaryKey  string     `json:"summary_key,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Summary job states reported by the server.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// BatchResult is the per-document outcome of a batch summarization request.
type BatchResult struct {
	DocumentID string     `json:"document_id"`
	Job        SummaryJob `json:"job,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status     int
	Message    string
	Violations []domain.Violation
}

func (e *APIError) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("api error %d: %s (%d violations)", e.Status, e.Message, len(e.Violations))
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// FailureKind reports the rollback classification for rejected requests.
func (e *APIError) FailureKind() optimistic.FailureKind { return optimistic.FailureRejected }

// DecodeError is a 2xx response whose body could not be decoded.
type DecodeError struct {
	cause error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode response: %v", e.cause) }

func (e *DecodeError) Unwrap() error { return e.cause }

// FailureKind reports the rollback classification for undecodable responses.
func (e *DecodeError) FailureKind() optimistic.FailureKind { return optimistic.FailureMalformed }

// Client talks to a neurolearn server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New builds a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs a JSON request. A nil out skips body decoding.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	return c.decode(resp, out)
}

func (c *Client) decode(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorFrom(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	envelope := struct {
		Data any `json:"data"`
	}{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &DecodeError{cause: err}
	}
	return nil
}

func apiErrorFrom(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var envelope struct {
		Error      string             `json:"error"`
		Violations []domain.Violation `json:"violations"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		apiErr.Message = envelope.Error
		apiErr.Violations = envelope.Violations
	}
	return apiErr
}

// TaskFilter narrows ListTasks. Zero values and "all" leave a dimension
// unconstrained.
type TaskFilter struct {
	Status   string
	Priority string
	Category string
	OwnerID  string
	Search   string
}

func (f TaskFilter) query() string {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("status", f.Status)
	set("priority", f.Priority)
	set("category", f.Category)
	set("owner_id", f.OwnerID)
	set("search", f.Search)
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListTasks returns tasks matching the filter.
func (c *Client) ListTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	var tasks []domain.Task
	err := c.do(ctx, http.MethodGet, "/api/v1/tasks"+filter.query(), nil, &tasks)
	return tasks, err
}

// CreateTask creates a task and returns the server copy.
func (c *Client) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	var created domain.Task
	err := c.do(ctx, http.MethodPost, "/api/v1/tasks", task, &created)
	return created, err
}

// GetTask fetches one task by ID.
func (c *Client) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+id, nil, &task)
	return task, err
}

// UpdateTask applies a partial update. Only fields present in patch change.
func (c *Client) UpdateTask(ctx context.Context, id string, patch map[string]any) (domain.Task, error) {
	var updated domain.Task
	err := c.do(ctx, http.MethodPatch, "/api/v1/tasks/"+id, patch, &updated)
	return updated, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+id, nil, nil)
}

// CompleteTask marks a task completed, updating any linked goal's progress.
func (c *Client) CompleteTask(ctx context.Context, id string) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPost, "/api/v1/tasks/"+id+"/complete", nil, &task)
	return task, err
}

// ToggleSubtask flips one subtask's done flag.
func (c *Client) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPost, "/api/v1/tasks/"+taskID+"/subtasks/"+subtaskID+"/toggle", nil, &task)
	return task, err
}

// ListGoals returns goals, optionally filtered by status and owner.
func (c *Client) ListGoals(ctx context.Context, status, ownerID string) ([]domain.Goal, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if ownerID != "" {
		q.Set("owner_id", ownerID)
	}
	path := "/api/v1/goals"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var goals []domain.Goal
	err := c.do(ctx, http.MethodGet, path, nil, &goals)
	return goals, err
}

// CreateGoal creates a goal and returns the server copy.
func (c *Client) CreateGoal(ctx context.Context, goal domain.Goal) (domain.Goal, error) {
	var created domain.Goal
	err := c.do(ctx, http.MethodPost, "/api/v1/goals", goal, &created)
	return created, err
}

// GetGoal fetches one goal by ID.
func (c *Client) GetGoal(ctx context.Context, id string) (domain.Goal, error) {
	var goal domain.Goal
	err := c.do(ctx, http.MethodGet, "/api/v1/goals/"+id, nil, &goal)
	return goal, err
}

// UpdateGoal applies a partial update to a goal.
func (c *Client) UpdateGoal(ctx context.Context, id string, patch map[string]any) (domain.Goal, error) {
	var updated domain.Goal
	err := c.do(ctx, http.MethodPatch, "/api/v1/goals/"+id, patch, &updated)
	return updated, err
}

// DeleteGoal removes a goal; linked tasks are detached, not deleted.
func (c *Client) DeleteGoal(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/goals/"+id, nil, nil)
}

// SetGoalProgress sets a goal's progress percentage.
func (c *Client) SetGoalProgress(ctx context.Context, id string, progress int) (domain.Goal, error) {
	var goal domain.Goal
	err := c.do(ctx, http.MethodPost, "/api/v1/goals/"+id+"/progress", map[string]int{"progress": progress}, &goal)
	return goal, err
}

// ToggleMilestone flips one milestone's done flag.
func (c *Client) ToggleMilestone(ctx context.Context, goalID, milestoneID string) (domain.Goal, error) {
	var goal domain.Goal
	err := c.do(ctx, http.MethodPost, "/api/v1/goals/"+goalID+"/milestones/"+milestoneID+"/toggle", nil, &goal)
	return goal, err
}

// ListNotifications returns a user's notifications, newest last.
func (c *Client) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	if unreadOnly {
		q.Set("unread", "true")
	}
	path := "/api/v1/notifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var notifications []domain.Notification
	err := c.do(ctx, http.MethodGet, path, nil, &notifications)
	return notifications, err
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) (domain.Notification, error) {
	var n domain.Notification
	err := c.do(ctx, http.MethodPost, "/api/v1/notifications/"+id+"/read", nil, &n)
	return n, err
}

// MarkAllNotificationsRead marks every unread notification for the user and
// returns how many were touched.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	var counts map[string]int
	err := c.do(ctx, http.MethodPost, "/api/v1/notifications/read-all", map[string]string{"user_id": userID}, &counts)
	return counts["updated"], err
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/notifications/"+id, nil, nil)
}

// ListConnections returns connections, optionally scoped to one user.
func (c *Client) ListConnections(ctx context.Context, userID string) ([]domain.Connection, error) {
	path := "/api/v1/connections"
	if userID != "" {
		path += "?user_id=" + url.QueryEscape(userID)
	}
	var connections []domain.Connection
	err := c.do(ctx, http.MethodGet, path, nil, &connections)
	return connections, err
}

// RequestConnection opens a pending connection between two users.
func (c *Client) RequestConnection(ctx context.Context, requesterID, addresseeID, message string) (domain.Connection, error) {
	var conn domain.Connection
	err := c.do(ctx, http.MethodPost, "/api/v1/connections", map[string]string{
		"requester_id": requesterID,
		"addressee_id": addresseeID,
		"message":      message,
	}, &conn)
	return conn, err
}

// RespondConnection accepts, declines, or blocks a connection request.
func (c *Client) RespondConnection(ctx context.Context, id string, status domain.ConnectionStatus) (domain.Connection, error) {
	var conn domain.Connection
	err := c.do(ctx, http.MethodPost, "/api/v1/connections/"+id+"/respond", map[string]domain.ConnectionStatus{"status": status}, &conn)
	return conn, err
}

// DeleteConnection removes a connection edge.
func (c *Client) DeleteConnection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/connections/"+id, nil, nil)
}

// ListDocuments returns documents, optionally scoped to one owner.
func (c *Client) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	path := "/api/v1/documents"
	if ownerID != "" {
		path += "?owner_id=" + url.QueryEscape(ownerID)
	}
	var docs []domain.Document
	err := c.do(ctx, http.MethodGet, path, nil, &docs)
	return docs, err
}

// GetDocument fetches one document's metadata.
func (c *Client) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	var doc domain.Document
	err := c.do(ctx, http.MethodGet, "/api/v1/documents/"+id, nil, &doc)
	return doc, err
}

// UploadDocument streams a file to the server and returns the stored record.
func (c *Client) UploadDocument(ctx context.Context, ownerID, name, contentType string, content io.Reader) (domain.Document, error) {
	var doc domain.Document

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("owner_id", ownerID); err != nil {
		return doc, fmt.Errorf("encode upload: %w", err)
	}
	part, err := mw.CreatePart(fileHeader(name, contentType))
	if err != nil {
		return doc, fmt.Errorf("encode upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return doc, fmt.Errorf("encode upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return doc, fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/documents", &buf)
	if err != nil {
		return doc, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return doc, fmt.Errorf("upload document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return doc, c.decode(resp, &doc)
}

func fileHeader(name, contentType string) map[string][]string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, name)},
		"Content-Type":        {contentType},
	}
}

// DocumentContent streams the raw document payload. The caller must close
// the returned reader.
func (c *Client) DocumentContent(ctx context.Context, id string) (io.ReadCloser, error) {
	return c.stream(ctx, "/api/v1/documents/"+id+"/content")
}

// DocumentSummary streams the generated summary text. The caller must close
// the returned reader.
func (c *Client) DocumentSummary(ctx context.Context, id string) (io.ReadCloser, error) {
	return c.stream(ctx, "/api/v1/documents/"+id+"/summary")
}

func (c *Client) stream(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, apiErrorFrom(resp)
	}
	return resp.Body, nil
}

// DeleteDocument removes a document and its stored content.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/documents/"+id, nil, nil)
}

// SummarizeDocument queues a document for summarization.
func (c *Client) SummarizeDocument(ctx context.Context, id, requestedBy string) (SummaryJob, error) {
	path := "/api/v1/documents/" + id + "/summarize"
	if requestedBy != "" {
		path += "?requested_by=" + url.QueryEscape(requestedBy)
	}
	var job SummaryJob
	err := c.do(ctx, http.MethodPost, path, nil, &job)
	return job, err
}

// SummarizeBatch queues several documents at once. Every document settles
// independently; per-document failures land in the result entries.
func (c *Client) SummarizeBatch(ctx context.Context, documentIDs []string, requestedBy string) ([]BatchResult, error) {
	var results []BatchResult
	err := c.do(ctx, http.MethodPost, "/api/v1/documents/summarize-batch", map[string]any{
		"document_ids": documentIDs,
		"requested_by": requestedBy,
	}, &results)
	return results, err
}

// GetSummaryJob fetches a summarization job's current state.
func (c *Client) GetSummaryJob(ctx context.Context, id string) (SummaryJob, error) {
	var job SummaryJob
	err := c.do(ctx, http.MethodGet, "/api/v1/summaries/jobs/"+id, nil, &job)
	return job, err
}
