package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateTask(Task) (Task, error)
	UpdateTask(id string, mutator func(*Task) error) (Task, error)
	DeleteTask(id string) error
	CreateGoal(Goal) (Goal, error)
	UpdateGoal(id string, mutator func(*Goal) error) (Goal, error)
	DeleteGoal(id string) error
	CreateNotification(Notification) (Notification, error)
	UpdateNotification(id string, mutator func(*Notification) error) (Notification, error)
	DeleteNotification(id string) error
	CreateConnection(Connection) (Connection, error)
	UpdateConnection(id string, mutator func(*Connection) error) (Connection, error)
	DeleteConnection(id string) error
	CreateDocument(Document) (Document, error)
	UpdateDocument(id string, mutator func(*Document) error) (Document, error)
	DeleteDocument(id string) error
	FindTask(id string) (Task, bool)
	FindGoal(id string) (Goal, bool)
	FindConnection(id string) (Connection, bool)
	FindDocument(id string) (Document, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView = RuleView

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetTask(id string) (Task, bool)
	ListTasks() []Task
	GetGoal(id string) (Goal, bool)
	ListGoals() []Goal
	GetNotification(id string) (Notification, bool)
	ListNotifications() []Notification
	GetConnection(id string) (Connection, bool)
	ListConnections() []Connection
	GetDocument(id string) (Document, bool)
	ListDocuments() []Document
}
