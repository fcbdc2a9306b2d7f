package optimistic_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"neurolearn/pkg/domain"
	"neurolearn/pkg/optimistic"
)

type kindErr struct {
	kind optimistic.FailureKind
}

func (e kindErr) Error() string                       { return string(e.kind) }
func (e kindErr) FailureKind() optimistic.FailureKind { return e.kind }

type taskMutation struct {
	target string
	desc   string
	local  func(items []domain.Task) []domain.Task
	remote func(ctx context.Context) (*domain.Task, error)
}

func (m taskMutation) TargetID() string { return m.target }

func (m taskMutation) Describe() string {
	if m.desc == "" {
		return "change"
	}
	return m.desc
}

func (m taskMutation) ApplyLocal(items []domain.Task) []domain.Task { return m.local(items) }

func (m taskMutation) ApplyRemote(ctx context.Context) (*domain.Task, error) {
	return m.remote(ctx)
}

func pendingTask(id, title string) domain.Task {
	return domain.Task{
		Base:     domain.Base{ID: id},
		Title:    title,
		Status:   domain.TaskStatusPending,
		Priority: domain.PriorityMedium,
	}
}

func completeMutation(id string, remote func(ctx context.Context) (*domain.Task, error)) taskMutation {
	return taskMutation{
		target: id,
		desc:   "completing the task",
		local: func(items []domain.Task) []domain.Task {
			for i := range items {
				if items[i].ID == id {
					items[i].Status = domain.TaskStatusCompleted
				}
			}
			return items
		},
		remote: remote,
	}
}

func TestApplyRollsBackOnServerRejection(t *testing.T) {
	col := optimistic.NewCollection(pendingTask("t1", "Revise algebra"))
	rec := &optimistic.Recorder{}
	x := optimistic.NewExecutor(col, optimistic.WithNotifier[domain.Task](rec))

	before := col.Items()
	err := x.Apply(context.Background(), completeMutation("t1", func(context.Context) (*domain.Task, error) {
		return nil, kindErr{kind: optimistic.FailureRejected}
	}))
	require.Error(t, err)

	require.Equal(t, before, col.Items())
	got, ok := col.Get("t1")
	require.True(t, ok)
	require.Equal(t, domain.TaskStatusPending, got.Status)

	entries := rec.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, optimistic.LevelError, entries[0].Level)
	require.Contains(t, entries[0].Message, "reverted")
}

func TestApplyKeepsOptimisticStateOnSuccess(t *testing.T) {
	goals := []domain.Goal{
		{Base: domain.Base{ID: "g1"}, Title: "Pass calculus", Status: domain.GoalStatusActive},
		{Base: domain.Base{ID: "g2"}, Title: "Read 12 books", Status: domain.GoalStatusActive},
		{Base: domain.Base{ID: "g3"}, Title: "Learn Spanish", Status: domain.GoalStatusActive},
	}
	col := optimistic.NewCollection(goals...)
	rec := &optimistic.Recorder{}
	x := optimistic.NewExecutor(col, optimistic.WithNotifier[domain.Goal](rec))

	err := x.Apply(context.Background(), deleteGoalMutation{id: "g2"})
	require.NoError(t, err)

	require.Equal(t, 2, col.Len())
	_, ok := col.Get("g2")
	require.False(t, ok)

	entries := rec.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, optimistic.LevelSuccess, entries[0].Level)
}

type deleteGoalMutation struct {
	id string
}

func (m deleteGoalMutation) TargetID() string { return m.id }

func (m deleteGoalMutation) ApplyLocal(items []domain.Goal) []domain.Goal {
	out := items[:0]
	for _, g := range items {
		if g.ID != m.id {
			out = append(out, g)
		}
	}
	return out
}

func (m deleteGoalMutation) ApplyRemote(context.Context) (*domain.Goal, error) {
	return nil, nil
}

func TestApplyRestoresNestedSubtasksExactly(t *testing.T) {
	task := pendingTask("t1", "Write essay")
	task.Subtasks = []domain.Subtask{
		{ID: "s1", Title: "Outline", Done: true},
		{ID: "s2", Title: "Draft", Done: false},
	}
	col := optimistic.NewCollection(task)
	x := optimistic.NewExecutor[domain.Task](col)

	before := col.Items()
	err := x.Apply(context.Background(), taskMutation{
		target: "t1",
		local: func(items []domain.Task) []domain.Task {
			items[0].Subtasks[1].Done = true
			items[0].Subtasks = append(items[0].Subtasks, domain.Subtask{ID: "s3", Title: "Proofread"})
			return items
		},
		remote: func(context.Context) (*domain.Task, error) {
			return nil, errors.New("connection reset")
		},
	})
	require.Error(t, err)
	require.Equal(t, before, col.Items())
}

func TestApplyTreatsAllFailureKindsAsRollback(t *testing.T) {
	failures := map[string]error{
		"transport": errors.New("dial tcp: connection refused"),
		"rejected":  kindErr{kind: optimistic.FailureRejected},
		"malformed": kindErr{kind: optimistic.FailureMalformed},
	}
	for name, failure := range failures {
		t.Run(name, func(t *testing.T) {
			col := optimistic.NewCollection(pendingTask("t1", "Study"))
			x := optimistic.NewExecutor[domain.Task](col)
			before := col.Items()

			err := x.Apply(context.Background(), completeMutation("t1", func(context.Context) (*domain.Task, error) {
				return nil, failure
			}))
			require.Error(t, err)
			require.Equal(t, before, col.Items())
		})
	}
}

func TestApplyReconcilesAuthoritativeEntity(t *testing.T) {
	col := optimistic.NewCollection[domain.Task]()
	x := optimistic.NewExecutor[domain.Task](col)

	temp := pendingTask("temp-123", "New task")
	server := pendingTask("srv-1", "New task")
	server.CreatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	err := x.Apply(context.Background(), taskMutation{
		target: "temp-123",
		local: func(items []domain.Task) []domain.Task {
			return append([]domain.Task{temp}, items...)
		},
		remote: func(context.Context) (*domain.Task, error) {
			return &server, nil
		},
	})
	require.NoError(t, err)

	require.Equal(t, 1, col.Len())
	_, ok := col.Get("temp-123")
	require.False(t, ok)
	got, ok := col.Get("srv-1")
	require.True(t, ok)
	require.Equal(t, server.CreatedAt, got.CreatedAt)
}

func TestApplyDropsStaleSettlementOnCancel(t *testing.T) {
	col := optimistic.NewCollection(pendingTask("t1", "Study"))
	rec := &optimistic.Recorder{}
	x := optimistic.NewExecutor(col, optimistic.WithNotifier[domain.Task](rec))

	ctx, cancel := context.WithCancel(context.Background())
	err := x.Apply(ctx, completeMutation("t1", func(ctx context.Context) (*domain.Task, error) {
		cancel()
		return nil, ctx.Err()
	}))
	require.ErrorIs(t, err, context.Canceled)

	// the optimistic state is left untouched and no notification fires
	got, _ := col.Get("t1")
	require.Equal(t, domain.TaskStatusCompleted, got.Status)
	require.Empty(t, rec.Entries())
}

func TestRollbackPreservesInterleavedMutation(t *testing.T) {
	col := optimistic.NewCollection(
		pendingTask("t1", "Algebra"),
		pendingTask("t2", "Geometry"),
	)
	x := optimistic.NewExecutor[domain.Task](col)

	t1Started := make(chan struct{})
	t1Release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = x.Apply(context.Background(), completeMutation("t1", func(context.Context) (*domain.Task, error) {
			close(t1Started)
			<-t1Release
			return nil, kindErr{kind: optimistic.FailureRejected}
		}))
	}()

	<-t1Started
	require.NoError(t, x.Apply(context.Background(), completeMutation("t2", func(context.Context) (*domain.Task, error) {
		return nil, nil
	})))
	close(t1Release)
	wg.Wait()

	got1, _ := col.Get("t1")
	require.Equal(t, domain.TaskStatusPending, got1.Status, "failed mutation must revert")
	got2, _ := col.Get("t2")
	require.Equal(t, domain.TaskStatusCompleted, got2.Status, "interleaved success must survive the rollback")
}

// slowTask widens the clone window so concurrent Apply calls overlap the
// snapshot-and-commit path.
type slowTask struct {
	id   string
	done bool
}

func (s slowTask) EntityID() string { return s.id }

func (s slowTask) Clone() slowTask {
	time.Sleep(200 * time.Microsecond)
	return s
}

type slowTaskMutation struct {
	target string
	remote func(ctx context.Context) (*slowTask, error)
}

func (m slowTaskMutation) TargetID() string { return m.target }

func (m slowTaskMutation) ApplyLocal(items []slowTask) []slowTask {
	for i := range items {
		if items[i].id == m.target {
			items[i].done = true
		}
	}
	return items
}

func (m slowTaskMutation) ApplyRemote(ctx context.Context) (*slowTask, error) {
	return m.remote(ctx)
}

func TestConcurrentRollbackLeavesOtherTargetsIntact(t *testing.T) {
	for i := 0; i < 25; i++ {
		col := optimistic.NewCollection(slowTask{id: "a"}, slowTask{id: "b"})
		x := optimistic.NewExecutor[slowTask](col)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = x.Apply(context.Background(), slowTaskMutation{
				target: "a",
				remote: func(context.Context) (*slowTask, error) {
					return nil, kindErr{kind: optimistic.FailureRejected}
				},
			})
		}()
		go func() {
			defer wg.Done()
			_ = x.Apply(context.Background(), slowTaskMutation{
				target: "b",
				remote: func(context.Context) (*slowTask, error) { return nil, nil },
			})
		}()
		wg.Wait()

		gotA, _ := col.Get("a")
		require.False(t, gotA.done, "rejected mutation must revert its own target")
		gotB, _ := col.Get("b")
		require.True(t, gotB.done, "concurrent success on another target must survive the rollback")
	}
}

func TestMutationsOnSameTargetSerialize(t *testing.T) {
	col := optimistic.NewCollection(pendingTask("t1", "Algebra"))
	x := optimistic.NewExecutor[domain.Task](col)

	firstInFlight := make(chan struct{})
	release := make(chan struct{})
	var order []string
	var mu sync.Mutex

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = x.Apply(context.Background(), taskMutation{
			target: "t1",
			local:  func(items []domain.Task) []domain.Task { return items },
			remote: func(context.Context) (*domain.Task, error) {
				close(firstInFlight)
				<-release
				mu.Lock()
				order = append(order, "first")
				mu.Unlock()
				return nil, nil
			},
		})
	}()
	<-firstInFlight
	go func() {
		defer wg.Done()
		_ = x.Apply(context.Background(), taskMutation{
			target: "t1",
			local:  func(items []domain.Task) []domain.Task { return items },
			remote: func(context.Context) (*domain.Task, error) {
				mu.Lock()
				order = append(order, "second")
				mu.Unlock()
				return nil, nil
			},
		})
	}()

	// the second mutation must not start until the first settles
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	require.Empty(t, order)
	mu.Unlock()

	close(release)
	wg.Wait()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestCollectionReadsReturnClones(t *testing.T) {
	task := pendingTask("t1", "Algebra")
	task.Subtasks = []domain.Subtask{{ID: "s1", Title: "Chapter 1"}}
	col := optimistic.NewCollection(task)

	items := col.Items()
	items[0].Subtasks[0].Done = true
	items[0].Title = strings.ToUpper(items[0].Title)

	fresh, _ := col.Get("t1")
	require.False(t, fresh.Subtasks[0].Done)
	require.Equal(t, "Algebra", fresh.Title)
}
