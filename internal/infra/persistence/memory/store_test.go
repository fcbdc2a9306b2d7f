package memory

import (
	"context"
	"errors"
	"testing"

	"neurolearn/pkg/domain"
)

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all" }

func (blockAllRule) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     "block_all",
		Severity: domain.SeverityBlock,
		Message:  "rejected",
	}}}, nil
}

func TestRunInTransactionCommitsOnSuccess(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var created domain.Task
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		task, err := tx.CreateTask(domain.Task{OwnerID: "u1", Title: "read chapter"})
		if err != nil {
			return err
		}
		created = task
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated ID")
	}
	if created.Status != domain.TaskStatusPending {
		t.Fatalf("expected default pending status, got %q", created.Status)
	}
	got, ok := store.GetTask(created.ID)
	if !ok {
		t.Fatal("task not committed")
	}
	if got.Title != "read chapter" {
		t.Fatalf("unexpected title %q", got.Title)
	}
}

func TestRunInTransactionDiscardsOnError(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	sentinel := errors.New("boom")
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateTask(domain.Task{Title: "doomed"}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if tasks := store.ListTasks(); len(tasks) != 0 {
		t.Fatalf("expected no committed tasks, got %d", len(tasks))
	}
}

func TestRunInTransactionBlocksOnRuleViolation(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockAllRule{})
	store := NewStore(engine)
	ctx := context.Background()

	res, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateGoal(domain.Goal{Title: "learn algebra"})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatal("expected blocking violation in result")
	}
	if goals := store.ListGoals(); len(goals) != 0 {
		t.Fatalf("expected no committed goals, got %d", len(goals))
	}
}

func TestUpdateTaskRecordsBeforeAndAfter(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var id string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		task, err := tx.CreateTask(domain.Task{Title: "draft essay", Subtasks: []domain.Subtask{{ID: "s1", Title: "outline"}}})
		if err != nil {
			return err
		}
		id = task.ID
		return nil
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateTask(id, func(task *domain.Task) error {
			task.Status = domain.TaskStatusCompleted
			task.Subtasks[0].Done = true
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, _ := store.GetTask(id)
	if got.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed, got %q", got.Status)
	}
	if !got.Subtasks[0].Done {
		t.Fatal("expected subtask marked done")
	}
}

func TestUpdateMissingTaskReturnsNotFound(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateTask("missing", func(task *domain.Task) error { return nil })
		return err
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRemovesEntity(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var id string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		conn, err := tx.CreateConnection(domain.Connection{RequesterID: "u1", AddresseeID: "u2"})
		if err != nil {
			return err
		}
		id = conn.ID
		return nil
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteConnection(id)
	}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := store.GetConnection(id); ok {
		t.Fatal("connection still present after delete")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateTask(domain.Task{Title: "a"}); err != nil {
			return err
		}
		if _, err := tx.CreateDocument(domain.Document{Name: "notes.pdf", BlobKey: "docs/notes.pdf"}); err != nil {
			return err
		}
		_, err := tx.CreateNotification(domain.Notification{UserID: "u1", Kind: domain.NotificationSystem, Title: "welcome"})
		return err
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	snapshot := store.ExportState()
	restored := NewStore(nil)
	restored.ImportState(snapshot)

	if got, want := len(restored.ListTasks()), 1; got != want {
		t.Fatalf("tasks: got %d want %d", got, want)
	}
	if got, want := len(restored.ListDocuments()), 1; got != want {
		t.Fatalf("documents: got %d want %d", got, want)
	}
	if got, want := len(restored.ListNotifications()), 1; got != want {
		t.Fatalf("notifications: got %d want %d", got, want)
	}
	doc := restored.ListDocuments()[0]
	if doc.Status != domain.DocumentUploaded {
		t.Fatalf("expected uploaded status, got %q", doc.Status)
	}
}

func TestListReturnsClones(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateTask(domain.Task{Title: "original", Subtasks: []domain.Subtask{{ID: "s1", Title: "step"}}})
		return err
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tasks := store.ListTasks()
	tasks[0].Title = "mutated"
	tasks[0].Subtasks[0].Done = true

	fresh := store.ListTasks()
	if fresh[0].Title != "original" {
		t.Fatal("list exposed internal state")
	}
	if fresh[0].Subtasks[0].Done {
		t.Fatal("nested slice shared with caller")
	}
}
