package core

import "neurolearn/pkg/domain"

type (
	EntityType         = domain.EntityType
	TaskStatus         = domain.TaskStatus
	TaskPriority       = domain.TaskPriority
	GoalStatus         = domain.GoalStatus
	ConnectionStatus   = domain.ConnectionStatus
	NotificationKind   = domain.NotificationKind
	DocumentStatus     = domain.DocumentStatus
	Severity           = domain.Severity
	Base               = domain.Base
	Task               = domain.Task
	Subtask            = domain.Subtask
	Goal               = domain.Goal
	Milestone          = domain.Milestone
	Notification       = domain.Notification
	EntityRef          = domain.EntityRef
	Connection         = domain.Connection
	Document           = domain.Document
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	ErrNotFound        = domain.ErrNotFound
)

const (
	EntityTask         = domain.EntityTask
	EntityGoal         = domain.EntityGoal
	EntityNotification = domain.EntityNotification
	EntityConnection   = domain.EntityConnection
	EntityDocument     = domain.EntityDocument
)

const (
	TaskStatusPending    = domain.TaskStatusPending
	TaskStatusInProgress = domain.TaskStatusInProgress
	TaskStatusCompleted  = domain.TaskStatusCompleted
)

const (
	GoalStatusActive    = domain.GoalStatusActive
	GoalStatusCompleted = domain.GoalStatusCompleted
	GoalStatusArchived  = domain.GoalStatusArchived
)

const (
	ConnectionPending  = domain.ConnectionPending
	ConnectionAccepted = domain.ConnectionAccepted
	ConnectionDeclined = domain.ConnectionDeclined
	ConnectionBlocked  = domain.ConnectionBlocked
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
