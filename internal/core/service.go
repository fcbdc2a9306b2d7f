// Package core exposes the transactional service layer for the neurolearn
// domain: task and goal workflows, the notification center, peer
// connections, and document lifecycle updates. All writes run through the
// persistent store's transaction boundary so the rules engine sees every
// change before it commits.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"neurolearn/internal/infra/persistence/memory"
	"neurolearn/pkg/domain"
)

// Service exposes higher-level transactional operations for the core schema.
type Service struct {
	store   domain.PersistentStore
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditSink
	nowFn   func() time.Time
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder observing every operation.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer attaches a tracer wrapping every operation in a span.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) { s.tracer = tracer }
}

// WithAuditSink attaches an audit sink receiving one entry per operation.
func WithAuditSink(sink AuditSink) ServiceOption {
	return func(s *Service) { s.audit = sink }
}

// WithClock overrides the service time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// run wraps a store transaction with tracing, metrics, logging, and auditing.
// The audit entry's entity reference may be filled in by fn before it returns.
func (s *Service) run(ctx context.Context, op string, entry *AuditEntry, fn func(domain.Transaction) error) (Result, error) {
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
	}
	start := s.nowFn()
	res, err := s.store.RunInTransaction(ctx, fn)
	duration := s.nowFn().Sub(start)

	if s.metrics != nil {
		s.metrics.Observe(ctx, op, err == nil, duration)
	}
	if span != nil {
		span.End(err)
	}

	var rve RuleViolationError
	switch {
	case err == nil:
		s.logger.Debug("operation committed", zap.String("operation", op), zap.Duration("duration", duration))
	case errors.As(err, &rve):
		s.logger.Warn("operation blocked by rules",
			zap.String("operation", op),
			zap.Int("violations", len(rve.Result.Violations)))
	default:
		s.logger.Error("operation failed", zap.String("operation", op), zap.Error(err))
	}

	if s.audit != nil && entry != nil {
		entry.Operation = op
		entry.OccurredAt = start
		switch {
		case err == nil:
			entry.Status = AuditOK
		case errors.As(err, &rve):
			entry.Status = AuditBlocked
		default:
			entry.Status = AuditError
			entry.Detail = err.Error()
		}
		s.audit.Record(ctx, *entry)
	}
	return res, err
}

// Task operations ---------------------------------------------------------

// CreateTask persists a new task.
func (s *Service) CreateTask(ctx context.Context, task Task) (Task, Result, error) {
	var created Task
	entry := AuditEntry{Entity: EntityTask, Actor: task.OwnerID}
	res, err := s.run(ctx, "create_task", &entry, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateTask(task)
		entry.EntityID = created.ID
		return err
	})
	return created, res, err
}

// UpdateTask mutates a task using the provided mutator.
func (s *Service) UpdateTask(ctx context.Context, id string, mutator func(*Task) error) (Task, Result, error) {
	var updated Task
	entry := AuditEntry{Entity: EntityTask, EntityID: id}
	res, err := s.run(ctx, "update_task", &entry, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateTask(id, mutator)
		return err
	})
	return updated, res, err
}

// DeleteTask removes a task record.
func (s *Service) DeleteTask(ctx context.Context, id string) (Result, error) {
	entry := AuditEntry{Entity: EntityTask, EntityID: id}
	return s.run(ctx, "delete_task", &entry, func(tx domain.Transaction) error {
		return tx.DeleteTask(id)
	})
}

// CompleteTask marks a task completed and, when the task is linked to a
// goal, recomputes that goal's progress from its linked tasks and notifies
// the owner of the new figure.
func (s *Service) CompleteTask(ctx context.Context, id string) (Task, Result, error) {
	var updated Task
	entry := AuditEntry{Entity: EntityTask, EntityID: id}
	res, err := s.run(ctx, "complete_task", &entry, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateTask(id, func(t *Task) error {
			t.Status = TaskStatusCompleted
			return nil
		})
		if err != nil {
			return err
		}
		if updated.GoalID == nil {
			return nil
		}
		return s.refreshGoalProgress(tx, *updated.GoalID, updated.OwnerID)
	})
	return updated, res, err
}

// refreshGoalProgress recomputes a goal's progress as the completed share of
// its linked tasks and emits a goal_progress notification on change.
func (s *Service) refreshGoalProgress(tx domain.Transaction, goalID, userID string) error {
	view := tx.Snapshot()
	var total, done int
	for _, t := range view.ListTasks() {
		if t.GoalID == nil || *t.GoalID != goalID {
			continue
		}
		total++
		if t.Status == TaskStatusCompleted {
			done++
		}
	}
	if total == 0 {
		return nil
	}
	progress := done * 100 / total
	goal, err := tx.UpdateGoal(goalID, func(g *Goal) error {
		if g.Progress == progress {
			return nil
		}
		g.Progress = progress
		if progress >= 100 {
			g.Status = GoalStatusCompleted
		}
		return nil
	})
	if err != nil {
		return err
	}
	_, err = tx.CreateNotification(Notification{
		UserID: userID,
		Kind:   domain.NotificationGoalProgress,
		Title:  fmt.Sprintf("Goal %q is %d%% complete", goal.Title, goal.Progress),
		EntityRef: &EntityRef{
			Type: EntityGoal,
			ID:   goalID,
		},
	})
	return err
}

// ToggleSubtask flips the done flag on a single subtask.
func (s *Service) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (Task, Result, error) {
	var updated Task
	entry := AuditEntry{Entity: EntityTask, EntityID: taskID}
	res, err := s.run(ctx, "toggle_subtask", &entry, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateTask(taskID, func(t *Task) error {
			for i := range t.Subtasks {
				if t.Subtasks[i].ID == subtaskID {
					t.Subtasks[i].Done = !t.Subtasks[i].Done
					return nil
				}
			}
			return fmt.Errorf("subtask %q not found in task %q", subtaskID, taskID)
		})
		return err
	})
	return updated, res, err
}

// Goal operations ---------------------------------------------------------

// CreateGoal persists a new goal.
func (s *Service) CreateGoal(ctx context.Context, goal Goal) (Goal, Result, error) {
	var created Goal
	entry := AuditEntry{Entity: EntityGoal, Actor: goal.OwnerID}
	res, err := s.run(ctx, "create_goal", &entry, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateGoal(goal)
		entry.EntityID = created.ID
		return err
	})
	return created, res, err
}

// UpdateGoal mutates a goal using the provided mutator.
func (s *Service) UpdateGoal(ctx context.Context, id string, mutator func(*Goal) error) (Goal, Result, error) {
	var updated Goal
	entry := AuditEntry{Entity: EntityGoal, EntityID: id}
	res, err := s.run(ctx, "update_goal", &entry, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateGoal(id, mutator)
		return err
	})
	return updated, res, err
}

// DeleteGoal removes a goal and detaches any tasks still linked to it.
func (s *Service) DeleteGoal(ctx context.Context, id string) (Result, error) {
	entry := AuditEntry{Entity: EntityGoal, EntityID: id}
	return s.run(ctx, "delete_goal", &entry, func(tx domain.Transaction) error {
		if err := tx.DeleteGoal(id); err != nil {
			return err
		}
		for _, t := range tx.Snapshot().ListTasks() {
			if t.GoalID == nil || *t.GoalID != id {
				continue
			}
			if _, err := tx.UpdateTask(t.ID, func(task *Task) error {
				task.GoalID = nil
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateGoalProgress sets a goal's progress directly. Progress reaching 100
// completes the goal and notifies the owner.
func (s *Service) UpdateGoalProgress(ctx context.Context, id string, progress int) (Goal, Result, error) {
	var updated Goal
	entry := AuditEntry{Entity: EntityGoal, EntityID: id}
	res, err := s.run(ctx, "update_goal_progress", &entry, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateGoal(id, func(g *Goal) error {
			g.Progress = progress
			if progress >= 100 {
				g.Status = GoalStatusCompleted
			}
			return nil
		})
		if err != nil {
			return err
		}
		if progress < 100 {
			return nil
		}
		_, err = tx.CreateNotification(Notification{
			UserID: updated.OwnerID,
			Kind:   domain.NotificationGoalProgress,
			Title:  fmt.Sprintf("Goal %q completed", updated.Title),
			EntityRef: &EntityRef{
				Type: EntityGoal,
				ID:   id,
			},
		})
		return err
	})
	return updated, res, err
}

// ToggleMilestone flips the done flag on a goal milestone.
func (s *Service) ToggleMilestone(ctx context.Context, goalID, milestoneID string) (Goal, Result, error) {
	var updated Goal
	entry := AuditEntry{Entity: EntityGoal, EntityID: goalID}
	res, err := s.run(ctx, "toggle_milestone", &entry, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateGoal(goalID, func(g *Goal) error {
			for i := range g.Milestones {
				if g.Milestones[i].ID == milestoneID {
					g.Milestones[i].Done = !g.Milestones[i].Done
					return nil
				}
			}
			return fmt.Errorf("milestone %q not found in goal %q", milestoneID, goalID)
		})
		return err
	})
	return updated, res, err
}

// Notification operations -------------------------------------------------

// PushNotification stores a notification addressed to a user.
func (s *Service) PushNotification(ctx context.Context, notification Notification) (Notification, Result, error) {
	var created Notification
	entry := AuditEntry{Entity: EntityNotification, Actor: notification.UserID}
	res, err := s.run(ctx, "push_notification", &entry, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateNotification(notification)
		entry.EntityID = created.ID
		return err
	})
	return created, res, err
}

// MarkNotificationRead flags a single notification as read.
func (s *Service) MarkNotificationRead(ctx context.Context, id string) (Notification, Result, error) {
	var updated Notification
	entry := AuditEntry{Entity: EntityNotification, EntityID: id}
	res, err := s.run(ctx, "mark_notification_read", &entry, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateNotification(id, func(n *Notification) error {
			n.Read = true
			return nil
		})
		return err
	})
	return updated, res, err
}

// MarkAllNotificationsRead flags every unread notification belonging to the
// user. It returns the number of notifications touched.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID string) (int, Result, error) {
	var touched int
	entry := AuditEntry{Entity: EntityNotification, Actor: userID}
	res, err := s.run(ctx, "mark_all_notifications_read", &entry, func(tx domain.Transaction) error {
		for _, n := range tx.Snapshot().ListNotifications() {
			if n.UserID != userID || n.Read {
				continue
			}
			if _, err := tx.UpdateNotification(n.ID, func(n *Notification) error {
				n.Read = true
				return nil
			}); err != nil {
				return err
			}
			touched++
		}
		return nil
	})
	return touched, res, err
}

// DeleteNotification removes a notification record.
func (s *Service) DeleteNotification(ctx context.Context, id string) (Result, error) {
	entry := AuditEntry{Entity: EntityNotification, EntityID: id}
	return s.run(ctx, "delete_notification", &entry, func(tx domain.Transaction) error {
		return tx.DeleteNotification(id)
	})
}

// Connection operations ---------------------------------------------------

// RequestConnection creates a pending connection edge and notifies the
// addressee.
func (s *Service) RequestConnection(ctx context.Context, requesterID, addresseeID, message string) (Connection, Result, error) {
	var created Connection
	entry := AuditEntry{Entity: EntityConnection, Actor: requesterID}
	res, err := s.run(ctx, "request_connection", &entry, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateConnection(Connection{
			RequesterID: requesterID,
			AddresseeID: addresseeID,
			Status:      ConnectionPending,
			Message:     message,
		})
		if err != nil {
			return err
		}
		entry.EntityID = created.ID
		_, err = tx.CreateNotification(Notification{
			UserID: addresseeID,
			Kind:   domain.NotificationConnection,
			Title:  "New connection request",
			Body:   message,
			EntityRef: &EntityRef{
				Type: EntityConnection,
				ID:   created.ID,
			},
		})
		return err
	})
	return created, res, err
}

// RespondConnection transitions a connection to the given status and, for
// accept or decline, notifies the requester of the outcome. Transition
// legality is enforced by the connection state rule.
func (s *Service) RespondConnection(ctx context.Context, id string, status ConnectionStatus) (Connection, Result, error) {
	var updated Connection
	entry := AuditEntry{Entity: EntityConnection, EntityID: id}
	res, err := s.run(ctx, "respond_connection", &entry, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateConnection(id, func(c *Connection) error {
			c.Status = status
			return nil
		})
		if err != nil {
			return err
		}
		if status != ConnectionAccepted && status != ConnectionDeclined {
			return nil
		}
		_, err = tx.CreateNotification(Notification{
			UserID: updated.RequesterID,
			Kind:   domain.NotificationConnection,
			Title:  fmt.Sprintf("Connection request %s", status),
			EntityRef: &EntityRef{
				Type: EntityConnection,
				ID:   id,
			},
		})
		return err
	})
	return updated, res, err
}

// DeleteConnection removes a connection edge.
func (s *Service) DeleteConnection(ctx context.Context, id string) (Result, error) {
	entry := AuditEntry{Entity: EntityConnection, EntityID: id}
	return s.run(ctx, "delete_connection", &entry, func(tx domain.Transaction) error {
		return tx.DeleteConnection(id)
	})
}

// Document operations -----------------------------------------------------

// CreateDocument registers an uploaded document record. The payload itself
// is stored in the blob store before this call.
func (s *Service) CreateDocument(ctx context.Context, doc Document) (Document, Result, error) {
	var created Document
	entry := AuditEntry{Entity: EntityDocument, Actor: doc.OwnerID}
	res, err := s.run(ctx, "create_document", &entry, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateDocument(doc)
		entry.EntityID = created.ID
		return err
	})
	return created, res, err
}

// MarkDocumentSummarizing moves a document into the summarizing state. The
// check runs inside the transaction so concurrent callers cannot both claim
// the same document.
func (s *Service) MarkDocumentSummarizing(ctx context.Context, id string) (Document, Result, error) {
	return s.updateDocumentStatus(ctx, "mark_document_summarizing", id, func(d *Document) error {
		if d.Status == domain.DocumentSummarizing {
			return fmt.Errorf("document %q is already being summarized", id)
		}
		d.Status = domain.DocumentSummarizing
		return nil
	}, nil)
}

// MarkDocumentSummarized records the stored summary artifact and notifies
// the owner.
func (s *Service) MarkDocumentSummarized(ctx context.Context, id, summaryBlobKey string) (Document, Result, error) {
	return s.updateDocumentStatus(ctx, "mark_document_summarized", id, func(d *Document) error {
		d.Status = domain.DocumentSummarized
		d.SummaryBlobKey = &summaryBlobKey
		return nil
	}, func(d Document) Notification {
		return Notification{
			UserID: d.OwnerID,
			Kind:   domain.NotificationSummary,
			Title:  fmt.Sprintf("Summary ready for %q", d.Name),
			EntityRef: &EntityRef{
				Type: EntityDocument,
				ID:   d.ID,
			},
		}
	})
}

// MarkDocumentFailed records a summarization failure and notifies the owner.
func (s *Service) MarkDocumentFailed(ctx context.Context, id, reason string) (Document, Result, error) {
	return s.updateDocumentStatus(ctx, "mark_document_failed", id, func(d *Document) error {
		d.Status = domain.DocumentFailed
		return nil
	}, func(d Document) Notification {
		return Notification{
			UserID: d.OwnerID,
			Kind:   domain.NotificationSummary,
			Title:  fmt.Sprintf("Summarization failed for %q", d.Name),
			Body:   reason,
			EntityRef: &EntityRef{
				Type: EntityDocument,
				ID:   d.ID,
			},
		}
	})
}

func (s *Service) updateDocumentStatus(ctx context.Context, op, id string, mutator func(*Document) error, notify func(Document) Notification) (Document, Result, error) {
	var updated Document
	entry := AuditEntry{Entity: EntityDocument, EntityID: id}
	res, err := s.run(ctx, op, &entry, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateDocument(id, mutator)
		if err != nil {
			return err
		}
		if notify == nil {
			return nil
		}
		_, err = tx.CreateNotification(notify(updated))
		return err
	})
	return updated, res, err
}

// DeleteDocument removes a document record.
func (s *Service) DeleteDocument(ctx context.Context, id string) (Result, error) {
	entry := AuditEntry{Entity: EntityDocument, EntityID: id}
	return s.run(ctx, "delete_document", &entry, func(tx domain.Transaction) error {
		return tx.DeleteDocument(id)
	})
}

// Read helpers ------------------------------------------------------------

// GetTask retrieves a task by ID.
func (s *Service) GetTask(id string) (Task, bool) { return s.store.GetTask(id) }

// ListTasks returns all tasks in creation order.
func (s *Service) ListTasks() []Task { return s.store.ListTasks() }

// GetGoal retrieves a goal by ID.
func (s *Service) GetGoal(id string) (Goal, bool) { return s.store.GetGoal(id) }

// ListGoals returns all goals in creation order.
func (s *Service) ListGoals() []Goal { return s.store.ListGoals() }

// GetNotification retrieves a notification by ID.
func (s *Service) GetNotification(id string) (Notification, bool) {
	return s.store.GetNotification(id)
}

// ListNotifications returns notifications for a user in creation order.
// An empty userID lists all.
func (s *Service) ListNotifications(userID string) []Notification {
	all := s.store.ListNotifications()
	if userID == "" {
		return all
	}
	out := make([]Notification, 0, len(all))
	for _, n := range all {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// GetConnection retrieves a connection by ID.
func (s *Service) GetConnection(id string) (Connection, bool) { return s.store.GetConnection(id) }

// ListConnections returns all connections in creation order.
func (s *Service) ListConnections() []Connection { return s.store.ListConnections() }

// GetDocument retrieves a document by ID.
func (s *Service) GetDocument(id string) (Document, bool) { return s.store.GetDocument(id) }

// ListDocuments returns all documents in creation order.
func (s *Service) ListDocuments() []Document { return s.store.ListDocuments() }
