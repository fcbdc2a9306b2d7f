package core

import (
	"context"
	"errors"
	"testing"

	"neurolearn/pkg/domain"
)

func newTestService(opts ...ServiceOption) *Service {
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

func mustCreateGoal(t *testing.T, svc *Service, goal Goal) Goal {
	t.Helper()
	created, _, err := svc.CreateGoal(context.Background(), goal)
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	return created
}

func mustCreateTask(t *testing.T, svc *Service, task Task) Task {
	t.Helper()
	created, _, err := svc.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return created
}

func TestCompleteTaskRefreshesGoalProgress(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	goal := mustCreateGoal(t, svc, Goal{OwnerID: "u1", Title: "learn calculus"})
	t1 := mustCreateTask(t, svc, Task{OwnerID: "u1", Title: "limits", GoalID: &goal.ID})
	mustCreateTask(t, svc, Task{OwnerID: "u1", Title: "derivatives", GoalID: &goal.ID})

	if _, _, err := svc.CompleteTask(ctx, t1.ID); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	updated, ok := svc.GetGoal(goal.ID)
	if !ok {
		t.Fatal("goal missing")
	}
	if updated.Progress != 50 {
		t.Fatalf("expected 50%% progress, got %d", updated.Progress)
	}
	notifications := svc.ListNotifications("u1")
	if len(notifications) != 1 {
		t.Fatalf("expected one progress notification, got %d", len(notifications))
	}
	if notifications[0].Kind != domain.NotificationGoalProgress {
		t.Fatalf("unexpected notification kind %q", notifications[0].Kind)
	}
}

func TestCompleteLastTaskCompletesGoal(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	goal := mustCreateGoal(t, svc, Goal{OwnerID: "u1", Title: "finish course"})
	task := mustCreateTask(t, svc, Task{OwnerID: "u1", Title: "final exam", GoalID: &goal.ID})

	if _, _, err := svc.CompleteTask(ctx, task.ID); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	updated, _ := svc.GetGoal(goal.ID)
	if updated.Status != GoalStatusCompleted || updated.Progress != 100 {
		t.Fatalf("expected completed goal at 100%%, got %q %d%%", updated.Status, updated.Progress)
	}
}

func TestUpdateGoalProgressOutOfRangeIsBlocked(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	goal := mustCreateGoal(t, svc, Goal{OwnerID: "u1", Title: "read ten books"})
	_, res, err := svc.UpdateGoalProgress(ctx, goal.ID, 140)
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatal("expected blocking violation")
	}
	unchanged, _ := svc.GetGoal(goal.ID)
	if unchanged.Progress != 0 {
		t.Fatalf("progress leaked past blocked commit: %d", unchanged.Progress)
	}
}

func TestToggleSubtask(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	task := mustCreateTask(t, svc, Task{
		OwnerID:  "u1",
		Title:    "essay",
		Subtasks: []Subtask{{ID: "s1", Title: "outline"}, {ID: "s2", Title: "draft"}},
	})

	updated, _, err := svc.ToggleSubtask(ctx, task.ID, "s2")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !updated.Subtasks[1].Done || updated.Subtasks[0].Done {
		t.Fatalf("unexpected subtask state: %+v", updated.Subtasks)
	}

	if _, _, err := svc.ToggleSubtask(ctx, task.ID, "missing"); err == nil {
		t.Fatal("expected error for unknown subtask")
	}
}

func TestDeleteGoalDetachesTasks(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	goal := mustCreateGoal(t, svc, Goal{OwnerID: "u1", Title: "temp"})
	task := mustCreateTask(t, svc, Task{OwnerID: "u1", Title: "orphan me", GoalID: &goal.ID})

	if _, err := svc.DeleteGoal(ctx, goal.ID); err != nil {
		t.Fatalf("delete goal: %v", err)
	}
	got, _ := svc.GetTask(task.ID)
	if got.GoalID != nil {
		t.Fatalf("task still references deleted goal %q", *got.GoalID)
	}
}

func TestRequestConnectionNotifiesAddressee(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	conn, _, err := svc.RequestConnection(ctx, "u1", "u2", "study together?")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if conn.Status != ConnectionPending {
		t.Fatalf("expected pending, got %q", conn.Status)
	}
	notifications := svc.ListNotifications("u2")
	if len(notifications) != 1 || notifications[0].Kind != domain.NotificationConnection {
		t.Fatalf("expected connection notification for addressee, got %+v", notifications)
	}
}

func TestSelfConnectionIsBlocked(t *testing.T) {
	svc := newTestService()
	_, _, err := svc.RequestConnection(context.Background(), "u1", "u1", "")
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation, got %v", err)
	}
}

func TestDuplicateConnectionIsBlocked(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, _, err := svc.RequestConnection(ctx, "u1", "u2", ""); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, _, err := svc.RequestConnection(ctx, "u2", "u1", "")
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected duplicate edge to be blocked, got %v", err)
	}
}

func TestRespondConnectionTransitions(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	conn, _, err := svc.RequestConnection(ctx, "u1", "u2", "")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	accepted, _, err := svc.RespondConnection(ctx, conn.ID, ConnectionAccepted)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != ConnectionAccepted {
		t.Fatalf("expected accepted, got %q", accepted.Status)
	}
	requesterNotes := svc.ListNotifications("u1")
	if len(requesterNotes) != 1 {
		t.Fatalf("expected acceptance notification, got %d", len(requesterNotes))
	}

	// Accepted may only move to blocked.
	_, _, err = svc.RespondConnection(ctx, conn.ID, ConnectionDeclined)
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected illegal transition to be blocked, got %v", err)
	}
	if _, _, err := svc.RespondConnection(ctx, conn.ID, ConnectionBlocked); err != nil {
		t.Fatalf("block: %v", err)
	}
	_, _, err = svc.RespondConnection(ctx, conn.ID, ConnectionAccepted)
	if !errors.As(err, &rve) {
		t.Fatalf("expected blocked to be terminal, got %v", err)
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := svc.PushNotification(ctx, Notification{UserID: "u1", Kind: domain.NotificationSystem, Title: "hello"}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if _, _, err := svc.PushNotification(ctx, Notification{UserID: "u2", Kind: domain.NotificationSystem, Title: "other"}); err != nil {
		t.Fatalf("push: %v", err)
	}

	touched, _, err := svc.MarkAllNotificationsRead(ctx, "u1")
	if err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if touched != 3 {
		t.Fatalf("expected 3 touched, got %d", touched)
	}
	for _, n := range svc.ListNotifications("u1") {
		if !n.Read {
			t.Fatalf("notification %q not marked read", n.ID)
		}
	}
	if other := svc.ListNotifications("u2"); other[0].Read {
		t.Fatal("another user's notification was marked read")
	}
}

func TestDocumentSummaryLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	doc, _, err := svc.CreateDocument(ctx, Document{OwnerID: "u1", Name: "lecture.pdf", BlobKey: "docs/lecture.pdf"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.MarkDocumentSummarizing(ctx, doc.ID); err != nil {
		t.Fatalf("summarizing: %v", err)
	}
	if _, _, err := svc.MarkDocumentSummarizing(ctx, doc.ID); err == nil {
		t.Fatal("expected error for a document already summarizing")
	}
	done, _, err := svc.MarkDocumentSummarized(ctx, doc.ID, "summaries/lecture.txt")
	if err != nil {
		t.Fatalf("summarized: %v", err)
	}
	if done.Status != domain.DocumentSummarized || done.SummaryBlobKey == nil {
		t.Fatalf("unexpected document state: %+v", done)
	}
	notes := svc.ListNotifications("u1")
	if len(notes) != 1 || notes[0].Kind != domain.NotificationSummary {
		t.Fatalf("expected summary notification, got %+v", notes)
	}
}
