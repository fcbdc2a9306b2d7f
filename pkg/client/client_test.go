package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neurolearn/internal/blob"
	"neurolearn/internal/core"
	"neurolearn/internal/httpapi"
	"neurolearn/internal/summarize"
	"neurolearn/pkg/domain"
	"neurolearn/pkg/optimistic"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithLogger(zap.NewNop()))
	blobs := blob.NewMemory()
	worker := summarize.NewWorker(svc, blobs, &summarize.ExtractiveSummarizer{}, summarize.WithWorkerLogger(zap.NewNop()))
	worker.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, worker.Stop(ctx))
	})

	srv := httpapi.NewServer(svc, blobs, worker, zap.NewNop(), httpapi.WithRegistry(prometheus.NewRegistry()))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return New(ts.URL, WithHTTPClient(ts.Client()))
}

func TestTaskRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	created, err := c.CreateTask(ctx, domain.Task{
		OwnerID:  "u1",
		Title:    "Draft outline",
		Priority: domain.PriorityHigh,
		Category: "study",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, domain.TaskStatusPending, created.Status)

	updated, err := c.UpdateTask(ctx, created.ID, map[string]any{"status": "in_progress"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, updated.Status)
	assert.Equal(t, created.Title, updated.Title)

	tasks, err := c.ListTasks(ctx, TaskFilter{Category: "study", Search: "outline"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	completed, err := c.CompleteTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, completed.Status)

	require.NoError(t, c.DeleteTask(ctx, created.ID))

	_, err = c.GetTask(ctx, created.ID)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, optimistic.FailureRejected, optimistic.Classify(err))
}

func TestRejectionCarriesViolations(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	goal, err := c.CreateGoal(ctx, domain.Goal{OwnerID: "u1", Title: "Learn Go"})
	require.NoError(t, err)

	_, err = c.SetGoalProgress(ctx, goal.ID, 150)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.NotEmpty(t, apiErr.Violations)
	assert.Equal(t, optimistic.FailureRejected, optimistic.Classify(err))
}

func TestMalformedResponseClassification(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "{broken")
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL)
	_, err := c.ListTasks(context.Background(), TaskFilter{})
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, optimistic.FailureMalformed, optimistic.Classify(err))
}

func TestTransportFailureClassification(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	ts.Close()

	c := New(ts.URL)
	_, err := c.ListTasks(context.Background(), TaskFilter{})
	require.Error(t, err)
	assert.Equal(t, optimistic.FailureTransport, optimistic.Classify(err))
}

func TestOptimisticCreateReconcilesServerID(t *testing.T) {
	c := newTestClient(t)

	collection := optimistic.NewCollection[domain.Task]()
	recorder := &optimistic.Recorder{}
	executor := optimistic.NewExecutor(collection, optimistic.WithNotifier[domain.Task](recorder))

	mutation := NewTaskCreate(c, domain.Task{OwnerID: "u1", Title: "Read chapter"})
	require.NoError(t, executor.Apply(context.Background(), mutation))

	items := collection.Items()
	require.Len(t, items, 1)
	assert.NotEqual(t, mutation.TargetID(), items[0].ID, "temporary ID should be replaced")
	assert.True(t, strings.HasPrefix(mutation.TargetID(), "tmp-"))

	entries := recorder.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, optimistic.LevelSuccess, entries[0].Level)
}

func TestOptimisticRejectionRollsBack(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	goal, err := c.CreateGoal(ctx, domain.Goal{OwnerID: "u1", Title: "Ship project"})
	require.NoError(t, err)

	collection := optimistic.NewCollection(goal)
	recorder := &optimistic.Recorder{}
	executor := optimistic.NewExecutor(collection, optimistic.WithNotifier[domain.Goal](recorder))

	err = executor.Apply(ctx, NewGoalProgress(c, goal.ID, 150))
	require.Error(t, err)
	assert.Equal(t, optimistic.FailureRejected, optimistic.Classify(err))

	restored, ok := collection.Get(goal.ID)
	require.True(t, ok)
	assert.Equal(t, goal.Progress, restored.Progress, "optimistic progress should be rolled back")
	assert.Equal(t, goal.Status, restored.Status)

	entries := recorder.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, optimistic.LevelError, entries[0].Level)
	assert.Contains(t, entries[0].Message, "reverted")
}

func TestUploadAndSummarize(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	doc, err := c.UploadDocument(ctx, "u1", "notes.txt", "text/plain",
		strings.NewReader("Active recall beats rereading. Test yourself often. Space the reviews."))
	require.NoError(t, err)
	require.NotEmpty(t, doc.ID)
	assert.Equal(t, domain.DocumentUploaded, doc.Status)

	job, err := c.SummarizeDocument(ctx, doc.ID, "u1")
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err = c.GetSummaryJob(ctx, job.ID)
		require.NoError(t, err)
		require.NotEqual(t, JobFailed, job.Status, job.Error)
		if job.Status == JobSucceeded {
			break
		}
		require.False(t, time.Now().After(deadline), "job still %q after deadline", job.Status)
		time.Sleep(10 * time.Millisecond)
	}

	body, err := c.DocumentSummary(ctx, doc.ID)
	require.NoError(t, err)
	summary, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Active recall")
}

func TestSummarizeBatchSettlesPerDocument(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	doc, err := c.UploadDocument(ctx, "u1", "a.txt", "text/plain", strings.NewReader("One idea."))
	require.NoError(t, err)

	results, err := c.SummarizeBatch(ctx, []string{doc.ID, "missing-doc"}, "u1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[0].Job.ID)
	assert.Contains(t, results[1].Error, "not found")
}
