package core

import (
	"context"
	"fmt"

	"neurolearn/pkg/domain"
)

// TaskStatusRule blocks tasks carrying an unknown status or priority, or an
// empty title, and enforces the status machine: a completed task can only be
// reopened to pending. Completing a task whose subtasks are not all done is
// allowed but warned.
func TaskStatusRule() domain.Rule {
	return taskStatusRule{}
}

type taskStatusRule struct{}

func (taskStatusRule) Name() string { return "task_status" }

var validTaskStatuses = map[TaskStatus]struct{}{
	TaskStatusPending:    {},
	TaskStatusInProgress: {},
	TaskStatusCompleted:  {},
}

var validTaskPriorities = map[TaskPriority]struct{}{
	domain.PriorityLow:    {},
	domain.PriorityMedium: {},
	domain.PriorityHigh:   {},
}

func (taskStatusRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var result Result
	for _, change := range changes {
		if change.Entity != EntityTask || change.Action == ActionDelete {
			continue
		}
		task, ok := change.After.(Task)
		if !ok {
			continue
		}
		if _, ok := validTaskStatuses[task.Status]; !ok {
			result.Violations = append(result.Violations, Violation{
				Rule:     "task_status",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("unknown task status %q", task.Status),
				Entity:   EntityTask,
				EntityID: task.ID,
			})
		}
		if _, ok := validTaskPriorities[task.Priority]; !ok {
			result.Violations = append(result.Violations, Violation{
				Rule:     "task_status",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("unknown task priority %q", task.Priority),
				Entity:   EntityTask,
				EntityID: task.ID,
			})
		}
		if task.Title == "" {
			result.Violations = append(result.Violations, Violation{
				Rule:     "task_status",
				Severity: SeverityBlock,
				Message:  "task title required",
				Entity:   EntityTask,
				EntityID: task.ID,
			})
		}
		if change.Action == ActionUpdate {
			if before, ok := change.Before.(Task); ok &&
				before.Status == TaskStatusCompleted &&
				task.Status == TaskStatusInProgress {
				result.Violations = append(result.Violations, Violation{
					Rule:     "task_status",
					Severity: SeverityBlock,
					Message:  "completed task can only be reopened to pending",
					Entity:   EntityTask,
					EntityID: task.ID,
				})
			}
		}
		if task.Status == TaskStatusCompleted {
			for _, sub := range task.Subtasks {
				if !sub.Done {
					result.Violations = append(result.Violations, Violation{
						Rule:     "task_status",
						Severity: SeverityWarn,
						Message:  fmt.Sprintf("task completed with unfinished subtask %q", sub.Title),
						Entity:   EntityTask,
						EntityID: task.ID,
					})
					break
				}
			}
		}
	}
	return result, nil
}
