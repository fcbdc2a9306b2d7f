// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by neurolearn.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityTask identifies a task record.
	EntityTask EntityType = "task"
	// EntityGoal identifies a goal record.
	EntityGoal EntityType = "goal"
	// EntityNotification identifies a notification record.
	EntityNotification EntityType = "notification"
	// EntityConnection identifies a peer connection record.
	EntityConnection EntityType = "connection"
	// EntityDocument identifies an uploaded document record.
	EntityDocument EntityType = "document"
)

// TaskStatus enumerates canonical task workflow states.
type TaskStatus string

// Canonical task statuses used by the status-transition rule.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskPriority ranks a task for display ordering and filtering.
type TaskPriority string

// Task priority levels.
const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// GoalStatus enumerates goal lifecycle states.
type GoalStatus string

// Canonical goal statuses.
const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusArchived  GoalStatus = "archived"
)

// ConnectionStatus enumerates peer connection states.
type ConnectionStatus string

// Canonical connection statuses enforced by the connection state rule.
const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionDeclined ConnectionStatus = "declined"
	ConnectionBlocked  ConnectionStatus = "blocked"
)

// NotificationKind categorizes notifications for the notification center.
type NotificationKind string

// Notification kinds emitted by the service layer.
const (
	NotificationTaskDue      NotificationKind = "task_due"
	NotificationGoalProgress NotificationKind = "goal_progress"
	NotificationConnection   NotificationKind = "connection"
	NotificationSummary      NotificationKind = "summary"
	NotificationSystem       NotificationKind = "system"
)

// DocumentStatus tracks a document through the summarization pipeline.
type DocumentStatus string

// Document lifecycle states.
const (
	DocumentUploaded    DocumentStatus = "uploaded"
	DocumentSummarizing DocumentStatus = "summarizing"
	DocumentSummarized  DocumentStatus = "summarized"
	DocumentFailed      DocumentStatus = "failed"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID returns the record identifier.
func (b Base) EntityID() string { return b.ID }

// Subtask is a checklist item nested inside a task. Subtasks travel with
// their parent: snapshots and rollbacks must cover them.
type Subtask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Task represents a single actionable item on a user's board.
type Task struct {
	Base
	OwnerID     string       `json:"owner_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	Category    string       `json:"category"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	GoalID      *string      `json:"goal_id,omitempty"`
	Subtasks    []Subtask    `json:"subtasks,omitempty"`
}

// Clone returns a deep copy of the task including nested subtasks.
func (t Task) Clone() Task {
	cp := t
	if t.DueDate != nil {
		due := *t.DueDate
		cp.DueDate = &due
	}
	if t.GoalID != nil {
		goal := *t.GoalID
		cp.GoalID = &goal
	}
	cp.Subtasks = append([]Subtask(nil), t.Subtasks...)
	return cp
}

// SearchText returns the free-text fields matched by collection search.
func (t Task) SearchText() []string { return []string{t.Title, t.Description} }

// Milestone is a named checkpoint toward a goal.
type Milestone struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Goal represents a longer-horizon objective tasks roll up into.
type Goal struct {
	Base
	OwnerID     string      `json:"owner_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Status      GoalStatus  `json:"status"`
	TargetDate  *time.Time  `json:"target_date,omitempty"`
	Progress    int         `json:"progress"`
	Milestones  []Milestone `json:"milestones,omitempty"`
}

// Clone returns a deep copy of the goal including milestones.
func (g Goal) Clone() Goal {
	cp := g
	if g.TargetDate != nil {
		target := *g.TargetDate
		cp.TargetDate = &target
	}
	cp.Milestones = append([]Milestone(nil), g.Milestones...)
	return cp
}

// SearchText returns the free-text fields matched by collection search.
func (g Goal) SearchText() []string { return []string{g.Title, g.Description} }

// EntityRef points a notification at the record it concerns.
type EntityRef struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id"`
}

// Notification is a single entry in a user's notification center.
type Notification struct {
	Base
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Read      bool             `json:"read"`
	EntityRef *EntityRef       `json:"entity_ref,omitempty"`
}

// Clone returns a deep copy of the notification.
func (n Notification) Clone() Notification {
	cp := n
	if n.EntityRef != nil {
		ref := *n.EntityRef
		cp.EntityRef = &ref
	}
	return cp
}

// SearchText returns the free-text fields matched by collection search.
func (n Notification) SearchText() []string { return []string{n.Title, n.Body} }

// Connection is a peer-networking edge between two users.
type Connection struct {
	Base
	RequesterID string           `json:"requester_id"`
	AddresseeID string           `json:"addressee_id"`
	Status      ConnectionStatus `json:"status"`
	Message     string           `json:"message,omitempty"`
}

// Clone returns a copy of the connection.
func (c Connection) Clone() Connection { return c }

// SearchText returns the free-text fields matched by collection search.
func (c Connection) SearchText() []string { return []string{c.Message} }

// Document is an uploaded file eligible for summarization. The payload
// itself lives in the blob store under BlobKey.
type Document struct {
	Base
	OwnerID        string         `json:"owner_id"`
	Name           string         `json:"name"`
	ContentType    string         `json:"content_type"`
	SizeBytes      int64          `json:"size_bytes"`
	BlobKey        string         `json:"blob_key"`
	Status         DocumentStatus `json:"status"`
	SummaryBlobKey *string        `json:"summary_blob_key,omitempty"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	cp := d
	if d.SummaryBlobKey != nil {
		key := *d.SummaryBlobKey
		cp.SummaryBlobKey = &key
	}
	return cp
}

// SearchText returns the free-text fields matched by collection search.
func (d Document) SearchText() []string { return []string{d.Name} }
