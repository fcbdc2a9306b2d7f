package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"neurolearn/pkg/domain"
	"neurolearn/pkg/optimistic"
)

// Mutations in this file pair each SDK call with the local transform the
// optimistic executor applies before the request settles. Creates insert
// the draft under a temporary ID which the executor swaps for the
// authoritative server record on success.

// TaskCreateMutation inserts a draft task.
type TaskCreateMutation struct {
	client *Client
	draft  domain.Task
	tempID string
}

// NewTaskCreate builds a create mutation with a fresh temporary ID.
func NewTaskCreate(c *Client, draft domain.Task) *TaskCreateMutation {
	return &TaskCreateMutation{client: c, draft: draft, tempID: "tmp-" + uuid.NewString()}
}

func (m *TaskCreateMutation) TargetID() string { return m.tempID }

func (m *TaskCreateMutation) ApplyLocal(items []domain.Task) []domain.Task {
	optimisticTask := m.draft.Clone()
	optimisticTask.ID = m.tempID
	if optimisticTask.Status == "" {
		optimisticTask.Status = domain.TaskStatusPending
	}
	if optimisticTask.Priority == "" {
		optimisticTask.Priority = domain.PriorityMedium
	}
	// New tasks surface at the top of the board.
	return append([]domain.Task{optimisticTask}, items...)
}

func (m *TaskCreateMutation) ApplyRemote(ctx context.Context) (*domain.Task, error) {
	created, err := m.client.CreateTask(ctx, m.draft)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (m *TaskCreateMutation) Describe() string {
	return fmt.Sprintf("creating task %q", m.draft.Title)
}

// TaskCompleteMutation marks a task completed.
type TaskCompleteMutation struct {
	client *Client
	taskID string
}

// NewTaskComplete builds a complete mutation for the given task.
func NewTaskComplete(c *Client, taskID string) *TaskCompleteMutation {
	return &TaskCompleteMutation{client: c, taskID: taskID}
}

func (m *TaskCompleteMutation) TargetID() string { return m.taskID }

func (m *TaskCompleteMutation) ApplyLocal(items []domain.Task) []domain.Task {
	for i := range items {
		if items[i].ID == m.taskID {
			items[i].Status = domain.TaskStatusCompleted
			break
		}
	}
	return items
}

func (m *TaskCompleteMutation) ApplyRemote(ctx context.Context) (*domain.Task, error) {
	task, err := m.client.CompleteTask(ctx, m.taskID)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (m *TaskCompleteMutation) Describe() string { return "completing task" }

// TaskDeleteMutation removes a task from the list.
type TaskDeleteMutation struct {
	client *Client
	taskID string
}

// NewTaskDelete builds a delete mutation for the given task.
func NewTaskDelete(c *Client, taskID string) *TaskDeleteMutation {
	return &TaskDeleteMutation{client: c, taskID: taskID}
}

func (m *TaskDeleteMutation) TargetID() string { return m.taskID }

func (m *TaskDeleteMutation) ApplyLocal(items []domain.Task) []domain.Task {
	out := items[:0]
	for _, t := range items {
		if t.ID != m.taskID {
			out = append(out, t)
		}
	}
	return out
}

func (m *TaskDeleteMutation) ApplyRemote(ctx context.Context) (*domain.Task, error) {
	return nil, m.client.DeleteTask(ctx, m.taskID)
}

func (m *TaskDeleteMutation) Describe() string { return "deleting task" }

// SubtaskToggleMutation flips one subtask's done flag.
type SubtaskToggleMutation struct {
	client    *Client
	taskID    string
	subtaskID string
}

// NewSubtaskToggle builds a toggle mutation for one subtask.
func NewSubtaskToggle(c *Client, taskID, subtaskID string) *SubtaskToggleMutation {
	return &SubtaskToggleMutation{client: c, taskID: taskID, subtaskID: subtaskID}
}

func (m *SubtaskToggleMutation) TargetID() string { return m.taskID }

func (m *SubtaskToggleMutation) ApplyLocal(items []domain.Task) []domain.Task {
	for i := range items {
		if items[i].ID != m.taskID {
			continue
		}
		for j := range items[i].Subtasks {
			if items[i].Subtasks[j].ID == m.subtaskID {
				items[i].Subtasks[j].Done = !items[i].Subtasks[j].Done
				break
			}
		}
		break
	}
	return items
}

func (m *SubtaskToggleMutation) ApplyRemote(ctx context.Context) (*domain.Task, error) {
	task, err := m.client.ToggleSubtask(ctx, m.taskID, m.subtaskID)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (m *SubtaskToggleMutation) Describe() string { return "updating checklist" }

// GoalCreateMutation inserts a draft goal.
type GoalCreateMutation struct {
	client *Client
	draft  domain.Goal
	tempID string
}

// NewGoalCreate builds a create mutation with a fresh temporary ID.
func NewGoalCreate(c *Client, draft domain.Goal) *GoalCreateMutation {
	return &GoalCreateMutation{client: c, draft: draft, tempID: "tmp-" + uuid.NewString()}
}

func (m *GoalCreateMutation) TargetID() string { return m.tempID }

func (m *GoalCreateMutation) ApplyLocal(items []domain.Goal) []domain.Goal {
	optimisticGoal := m.draft.Clone()
	optimisticGoal.ID = m.tempID
	if optimisticGoal.Status == "" {
		optimisticGoal.Status = domain.GoalStatusActive
	}
	return append([]domain.Goal{optimisticGoal}, items...)
}

func (m *GoalCreateMutation) ApplyRemote(ctx context.Context) (*domain.Goal, error) {
	created, err := m.client.CreateGoal(ctx, m.draft)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (m *GoalCreateMutation) Describe() string {
	return fmt.Sprintf("creating goal %q", m.draft.Title)
}

// GoalProgressMutation sets a goal's progress percentage.
type GoalProgressMutation struct {
	client   *Client
	goalID   string
	progress int
}

// NewGoalProgress builds a progress mutation for the given goal.
func NewGoalProgress(c *Client, goalID string, progress int) *GoalProgressMutation {
	return &GoalProgressMutation{client: c, goalID: goalID, progress: progress}
}

func (m *GoalProgressMutation) TargetID() string { return m.goalID }

func (m *GoalProgressMutation) ApplyLocal(items []domain.Goal) []domain.Goal {
	for i := range items {
		if items[i].ID == m.goalID {
			items[i].Progress = m.progress
			if m.progress >= 100 {
				items[i].Status = domain.GoalStatusCompleted
			}
			break
		}
	}
	return items
}

func (m *GoalProgressMutation) ApplyRemote(ctx context.Context) (*domain.Goal, error) {
	goal, err := m.client.SetGoalProgress(ctx, m.goalID, m.progress)
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

func (m *GoalProgressMutation) Describe() string { return "updating goal progress" }

// GoalDeleteMutation removes a goal from the list.
type GoalDeleteMutation struct {
	client *Client
	goalID string
}

// NewGoalDelete builds a delete mutation for the given goal.
func NewGoalDelete(c *Client, goalID string) *GoalDeleteMutation {
	return &GoalDeleteMutation{client: c, goalID: goalID}
}

func (m *GoalDeleteMutation) TargetID() string { return m.goalID }

func (m *GoalDeleteMutation) ApplyLocal(items []domain.Goal) []domain.Goal {
	out := items[:0]
	for _, g := range items {
		if g.ID != m.goalID {
			out = append(out, g)
		}
	}
	return out
}

func (m *GoalDeleteMutation) ApplyRemote(ctx context.Context) (*domain.Goal, error) {
	return nil, m.client.DeleteGoal(ctx, m.goalID)
}

func (m *GoalDeleteMutation) Describe() string { return "deleting goal" }

// MilestoneToggleMutation flips one milestone's done flag.
type MilestoneToggleMutation struct {
	client      *Client
	goalID      string
	milestoneID string
}

// NewMilestoneToggle builds a toggle mutation for one milestone.
func NewMilestoneToggle(c *Client, goalID, milestoneID string) *MilestoneToggleMutation {
	return &MilestoneToggleMutation{client: c, goalID: goalID, milestoneID: milestoneID}
}

func (m *MilestoneToggleMutation) TargetID() string { return m.goalID }

func (m *MilestoneToggleMutation) ApplyLocal(items []domain.Goal) []domain.Goal {
	for i := range items {
		if items[i].ID != m.goalID {
			continue
		}
		for j := range items[i].Milestones {
			if items[i].Milestones[j].ID == m.milestoneID {
				items[i].Milestones[j].Done = !items[i].Milestones[j].Done
				break
			}
		}
		break
	}
	return items
}

func (m *MilestoneToggleMutation) ApplyRemote(ctx context.Context) (*domain.Goal, error) {
	goal, err := m.client.ToggleMilestone(ctx, m.goalID, m.milestoneID)
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

func (m *MilestoneToggleMutation) Describe() string { return "updating milestones" }

// NotificationReadMutation marks one notification as read.
type NotificationReadMutation struct {
	client         *Client
	notificationID string
}

// NewNotificationRead builds a read mutation for one notification.
func NewNotificationRead(c *Client, notificationID string) *NotificationReadMutation {
	return &NotificationReadMutation{client: c, notificationID: notificationID}
}

func (m *NotificationReadMutation) TargetID() string { return m.notificationID }

func (m *NotificationReadMutation) ApplyLocal(items []domain.Notification) []domain.Notification {
	for i := range items {
		if items[i].ID == m.notificationID {
			items[i].Read = true
			break
		}
	}
	return items
}

func (m *NotificationReadMutation) ApplyRemote(ctx context.Context) (*domain.Notification, error) {
	n, err := m.client.MarkNotificationRead(ctx, m.notificationID)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (m *NotificationReadMutation) Describe() string { return "marking notification read" }

// NotificationReadAllMutation marks every notification for one user as read.
// It targets the whole list rather than a single entity, so a failure rolls
// back via the full-snapshot path.
type NotificationReadAllMutation struct {
	client *Client
	userID string
}

// NewNotificationReadAll builds a read-all mutation for the user's list.
func NewNotificationReadAll(c *Client, userID string) *NotificationReadAllMutation {
	return &NotificationReadAllMutation{client: c, userID: userID}
}

func (m *NotificationReadAllMutation) TargetID() string {
	return "notifications:" + m.userID
}

func (m *NotificationReadAllMutation) ApplyLocal(items []domain.Notification) []domain.Notification {
	for i := range items {
		if items[i].UserID == m.userID {
			items[i].Read = true
		}
	}
	return items
}

func (m *NotificationReadAllMutation) ApplyRemote(ctx context.Context) (*domain.Notification, error) {
	_, err := m.client.MarkAllNotificationsRead(ctx, m.userID)
	return nil, err
}

func (m *NotificationReadAllMutation) Describe() string { return "marking all notifications read" }

// ConnectionRequestMutation inserts a draft pending connection.
type ConnectionRequestMutation struct {
	client      *Client
	requesterID string
	addresseeID string
	message     string
	tempID      string
}

// NewConnectionRequest builds a request mutation with a fresh temporary ID.
func NewConnectionRequest(c *Client, requesterID, addresseeID, message string) *ConnectionRequestMutation {
	return &ConnectionRequestMutation{
		client:      c,
		requesterID: requesterID,
		addresseeID: addresseeID,
		message:     message,
		tempID:      "tmp-" + uuid.NewString(),
	}
}

func (m *ConnectionRequestMutation) TargetID() string { return m.tempID }

func (m *ConnectionRequestMutation) ApplyLocal(items []domain.Connection) []domain.Connection {
	return append(items, domain.Connection{
		Base:        domain.Base{ID: m.tempID},
		RequesterID: m.requesterID,
		AddresseeID: m.addresseeID,
		Status:      domain.ConnectionPending,
		Message:     m.message,
	})
}

func (m *ConnectionRequestMutation) ApplyRemote(ctx context.Context) (*domain.Connection, error) {
	conn, err := m.client.RequestConnection(ctx, m.requesterID, m.addresseeID, m.message)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (m *ConnectionRequestMutation) Describe() string { return "sending connection request" }

// ConnectionRespondMutation accepts, declines, or blocks a request.
type ConnectionRespondMutation struct {
	client       *Client
	connectionID string
	status       domain.ConnectionStatus
}

// NewConnectionRespond builds a respond mutation for one connection.
func NewConnectionRespond(c *Client, connectionID string, status domain.ConnectionStatus) *ConnectionRespondMutation {
	return &ConnectionRespondMutation{client: c, connectionID: connectionID, status: status}
}

func (m *ConnectionRespondMutation) TargetID() string { return m.connectionID }

func (m *ConnectionRespondMutation) ApplyLocal(items []domain.Connection) []domain.Connection {
	for i := range items {
		if items[i].ID == m.connectionID {
			items[i].Status = m.status
			break
		}
	}
	return items
}

func (m *ConnectionRespondMutation) ApplyRemote(ctx context.Context) (*domain.Connection, error) {
	conn, err := m.client.RespondConnection(ctx, m.connectionID, m.status)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (m *ConnectionRespondMutation) Describe() string {
	return fmt.Sprintf("responding to connection request (%s)", m.status)
}

// Interface checks.
var (
	_ optimistic.Mutation[domain.Task]         = (*TaskCreateMutation)(nil)
	_ optimistic.Mutation[domain.Task]         = (*TaskCompleteMutation)(nil)
	_ optimistic.Mutation[domain.Task]         = (*TaskDeleteMutation)(nil)
	_ optimistic.Mutation[domain.Task]         = (*SubtaskToggleMutation)(nil)
	_ optimistic.Mutation[domain.Goal]         = (*GoalCreateMutation)(nil)
	_ optimistic.Mutation[domain.Goal]         = (*GoalProgressMutation)(nil)
	_ optimistic.Mutation[domain.Goal]         = (*GoalDeleteMutation)(nil)
	_ optimistic.Mutation[domain.Goal]         = (*MilestoneToggleMutation)(nil)
	_ optimistic.Mutation[domain.Notification] = (*NotificationReadMutation)(nil)
	_ optimistic.Mutation[domain.Notification] = (*NotificationReadAllMutation)(nil)
	_ optimistic.Mutation[domain.Connection]   = (*ConnectionRequestMutation)(nil)
	_ optimistic.Mutation[domain.Connection]   = (*ConnectionRespondMutation)(nil)
)
