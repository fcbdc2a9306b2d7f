package summarize

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult pairs a document ID with its enqueue outcome. Batch enqueues
// settle every document independently: one rejection never aborts the rest.
type BatchResult struct {
	DocumentID string `json:"document_id"`
	Job        Job    `json:"job,omitempty"`
	Err        error  `json:"-"`
	Error      string `json:"error,omitempty"`
}

// EnqueueBatch schedules summarization for each document with bounded
// concurrency and returns one result per input, in input order.
func EnqueueBatch(ctx context.Context, scheduler Scheduler, documentIDs []string, requestedBy string, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = 4
	}
	results := make([]BatchResult, len(documentIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range documentIDs {
		g.Go(func() error {
			job, err := scheduler.Enqueue(ctx, id, requestedBy)
			result := BatchResult{DocumentID: id, Job: job, Err: err}
			if err != nil {
				result.Error = err.Error()
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()
	return results
}
