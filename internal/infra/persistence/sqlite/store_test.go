package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"neurolearn/pkg/domain"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neurolearn.db")
	ctx := context.Background()

	store := openStore(t, path)
	var taskID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		task, err := tx.CreateTask(domain.Task{
			OwnerID:  "u1",
			Title:    "review flashcards",
			Priority: domain.PriorityHigh,
			Subtasks: []domain.Subtask{{ID: "s1", Title: "deck one"}},
		})
		if err != nil {
			return err
		}
		taskID = task.ID
		_, err = tx.CreateGoal(domain.Goal{OwnerID: "u1", Title: "pass exam", Progress: 40})
		return err
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openStore(t, path)
	task, ok := reopened.GetTask(taskID)
	if !ok {
		t.Fatal("task missing after reopen")
	}
	if task.Title != "review flashcards" || task.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected task after reopen: %+v", task)
	}
	if len(task.Subtasks) != 1 || task.Subtasks[0].Title != "deck one" {
		t.Fatalf("subtasks lost across reopen: %+v", task.Subtasks)
	}
	goals := reopened.ListGoals()
	if len(goals) != 1 || goals[0].Progress != 40 {
		t.Fatalf("unexpected goals after reopen: %+v", goals)
	}
}

func TestFailedTransactionLeavesSnapshotUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neurolearn.db")
	ctx := context.Background()

	store := openStore(t, path)
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateTask(domain.Task{Title: "keeper"})
		return err
	}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	sentinel := errors.New("abort")
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateTask(domain.Task{Title: "discarded"}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openStore(t, path)
	tasks := reopened.ListTasks()
	if len(tasks) != 1 || tasks[0].Title != "keeper" {
		t.Fatalf("snapshot corrupted by failed transaction: %+v", tasks)
	}
}

func TestDeleteIsDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neurolearn.db")
	ctx := context.Background()

	store := openStore(t, path)
	var id string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		doc, err := tx.CreateDocument(domain.Document{Name: "syllabus.pdf", BlobKey: "docs/syllabus.pdf"})
		if err != nil {
			return err
		}
		id = doc.ID
		return nil
	}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteDocument(id)
	}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openStore(t, path)
	if _, ok := reopened.GetDocument(id); ok {
		t.Fatal("document resurrected after reopen")
	}
}
