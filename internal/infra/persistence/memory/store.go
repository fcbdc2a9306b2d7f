// Package memory provides the in-memory transactional store that the durable
// backends build upon. Transactions run against a deep clone of the state;
// the clone is committed only when the transaction function and the rules
// engine both succeed, otherwise it is discarded and the previous state
// remains visible unchanged.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"neurolearn/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

type state struct {
	tasks         map[string]domain.Task
	goals         map[string]domain.Goal
	notifications map[string]domain.Notification
	connections   map[string]domain.Connection
	documents     map[string]domain.Document
}

func newState() state {
	return state{
		tasks:         make(map[string]domain.Task),
		goals:         make(map[string]domain.Goal),
		notifications: make(map[string]domain.Notification),
		connections:   make(map[string]domain.Connection),
		documents:     make(map[string]domain.Document),
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.tasks {
		cloned.tasks[k] = v.Clone()
	}
	for k, v := range s.goals {
		cloned.goals[k] = v.Clone()
	}
	for k, v := range s.notifications {
		cloned.notifications[k] = v.Clone()
	}
	for k, v := range s.connections {
		cloned.connections[k] = v.Clone()
	}
	for k, v := range s.documents {
		cloned.documents[k] = v.Clone()
	}
	return cloned
}

// Snapshot is the serialisable representation of the in-memory state.
type Snapshot struct {
	Tasks         []domain.Task         `json:"tasks"`
	Goals         []domain.Goal         `json:"goals"`
	Notifications []domain.Notification `json:"notifications"`
	Connections   []domain.Connection   `json:"connections"`
	Documents     []domain.Document     `json:"documents"`
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func newID() string { return uuid.NewString() }

// Tx represents a mutation set applied to the store state.
type Tx struct {
	store   *Store
	state   state
	changes []domain.Change
	now     time.Time
}

var _ domain.Transaction = (*Tx)(nil)

// view exposes a read-only snapshot of transactional state to rules.
type view struct {
	state *state
}

var _ domain.TransactionView = view{}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &tx.state}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(view{state: &snapshot})
}

// ExportState returns a serialisable snapshot of committed state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Tasks:         sortedValues(s.state.tasks, func(t domain.Task) domain.Base { return t.Base }),
		Goals:         sortedValues(s.state.goals, func(g domain.Goal) domain.Base { return g.Base }),
		Notifications: sortedValues(s.state.notifications, func(n domain.Notification) domain.Base { return n.Base }),
		Connections:   sortedValues(s.state.connections, func(c domain.Connection) domain.Base { return c.Base }),
		Documents:     sortedValues(s.state.documents, func(d domain.Document) domain.Base { return d.Base }),
	}
}

// ImportState replaces committed state with the snapshot contents.
func (s *Store) ImportState(snapshot Snapshot) {
	st := newState()
	for _, t := range snapshot.Tasks {
		st.tasks[t.ID] = t.Clone()
	}
	for _, g := range snapshot.Goals {
		st.goals[g.ID] = g.Clone()
	}
	for _, n := range snapshot.Notifications {
		st.notifications[n.ID] = n.Clone()
	}
	for _, c := range snapshot.Connections {
		st.connections[c.ID] = c.Clone()
	}
	for _, d := range snapshot.Documents {
		st.documents[d.ID] = d.Clone()
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Snapshot exposes the transactional state to rule evaluation mid-flight.
func (tx *Tx) Snapshot() domain.TransactionView {
	return view{state: &tx.state}
}

func (tx *Tx) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// CreateTask stores a new task within the transaction.
func (tx *Tx) CreateTask(t domain.Task) (domain.Task, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	if _, exists := tx.state.tasks[t.ID]; exists {
		return domain.Task{}, domain.ErrAlreadyExists{Entity: domain.EntityTask, ID: t.ID}
	}
	if t.Status == "" {
		t.Status = domain.TaskStatusPending
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.tasks[t.ID] = t.Clone()
	tx.recordChange(domain.Change{Entity: domain.EntityTask, Action: domain.ActionCreate, After: t.Clone()})
	return t.Clone(), nil
}

// UpdateTask mutates a task using the provided mutator function.
func (tx *Tx) UpdateTask(id string, mutator func(*domain.Task) error) (domain.Task, error) {
	current, ok := tx.state.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound{Entity: domain.EntityTask, ID: id}
	}
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return domain.Task{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.tasks[id] = current.Clone()
	tx.recordChange(domain.Change{Entity: domain.EntityTask, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// DeleteTask removes a task from the transaction state.
func (tx *Tx) DeleteTask(id string) error {
	current, ok := tx.state.tasks[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityTask, ID: id}
	}
	delete(tx.state.tasks, id)
	tx.recordChange(domain.Change{Entity: domain.EntityTask, Action: domain.ActionDelete, Before: current.Clone()})
	return nil
}

// CreateGoal stores a new goal.
func (tx *Tx) CreateGoal(g domain.Goal) (domain.Goal, error) {
	if g.ID == "" {
		g.ID = newID()
	}
	if _, exists := tx.state.goals[g.ID]; exists {
		return domain.Goal{}, domain.ErrAlreadyExists{Entity: domain.EntityGoal, ID: g.ID}
	}
	if g.Status == "" {
		g.Status = domain.GoalStatusActive
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.goals[g.ID] = g.Clone()
	tx.recordChange(domain.Change{Entity: domain.EntityGoal, Action: domain.ActionCreate, After: g.Clone()})
	return g.Clone(), nil
}

// UpdateGoal mutates an existing goal.
func (tx *Tx) UpdateGoal(id string, mutator func(*domain.Goal) error) (domain.Goal, error) {
	current, ok := tx.state.goals[id]
	if !ok {
		return domain.Goal{}, domain.ErrNotFound{Entity: domain.EntityGoal, ID: id}
	}
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return domain.Goal{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.goals[id] = current.Clone()
	tx.recordChange(domain.Change{Entity: domain.EntityGoal, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// DeleteGoal removes a goal from state.
func (tx *Tx) DeleteGoal(id string) error {
	current, ok := tx.state.goals[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityGoal, ID: id}
	}
	delete(tx.state.goals, id)
	tx.recordChange(domain.Change{Entity: domain.EntityGoal, Action: domain.ActionDelete, Before: current.Clone()})
	return nil
}

// CreateNotification stores a notification record.
func (tx *Tx) CreateNotification(n domain.Notification) (domain.Notification, error) {
	if n.ID == "" {
		n.ID = newID()
	}
	if _, exists := tx.state.notifications[n.ID]; exists {
		return domain.Notification{}, domain.ErrAlreadyExists{Entity: domain.EntityNotification, ID: n.ID}
	}
	n.CreatedAt = tx.now
	n.UpdatedAt = tx.now
	tx.state.notifications[n.ID] = n.Clone()
	tx.recordChange(domain.Change{Entity: domain.EntityNotification, Action: domain.ActionCreate, After: n.Clone()})
	return n.Clone(), nil
}

// UpdateNotification mutates a notification.
func (tx *Tx) UpdateNotification(id string, mutator func(*domain.Notification) error) (domain.Notification, error) {
	current, ok := tx.state.notifications[id]
	if !ok {
		return domain.Notification{}, domain.ErrNotFound{Entity: domain.EntityNotification, ID: id}
	}
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return domain.Notification{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.notifications[id] = current.Clone()
	tx.recordChange(domain.Change{Entity: domain.EntityNotification, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// DeleteNotification removes a notification.
func (tx *Tx) DeleteNotification(id string) error {
	current, ok := tx.state.notifications[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityNotification, ID: id}
	}
	delete(tx.state.notifications, id)
	tx.recordChange(domain.Change{Entity: domain.EntityNotification, Action: domain.ActionDelete, Before: current.Clone()})
	return nil
}

// CreateConnection stores a connection request.
func (tx *Tx) CreateConnection(c domain.Connection) (domain.Connection, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	if _, exists := tx.state.connections[c.ID]; exists {
		return domain.Connection{}, domain.ErrAlreadyExists{Entity: domain.EntityConnection, ID: c.ID}
	}
	if c.Status == "" {
		c.Status = domain.ConnectionPending
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.connections[c.ID] = c.Clone()
	tx.recordChange(domain.Change{Entity: domain.EntityConnection, Action: domain.ActionCreate, After: c.Clone()})
	return c.Clone(), nil
}

// UpdateConnection mutates an existing connection.
func (tx *Tx) UpdateConnection(id string, mutator func(*domain.Connection) error) (domain.Connection, error) {
	current, ok := tx.state.connections[id]
	if !ok {
		return domain.Connection{}, domain.ErrNotFound{Entity: domain.EntityConnection, ID: id}
	}
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return domain.Connection{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.connections[id] = current.Clone()
	tx.recordChange(domain.Change{Entity: domain.EntityConnection, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// DeleteConnection removes a connection edge.
func (tx *Tx) DeleteConnection(id string) error {
	current, ok := tx.state.connections[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityConnection, ID: id}
	}
	delete(tx.state.connections, id)
	tx.recordChange(domain.Change{Entity: domain.EntityConnection, Action: domain.ActionDelete, Before: current.Clone()})
	return nil
}

// CreateDocument stores a document record.
func (tx *Tx) CreateDocument(d domain.Document) (domain.Document, error) {
	if d.ID == "" {
		d.ID = newID()
	}
	if _, exists := tx.state.documents[d.ID]; exists {
		return domain.Document{}, domain.ErrAlreadyExists{Entity: domain.EntityDocument, ID: d.ID}
	}
	if d.Status == "" {
		d.Status = domain.DocumentUploaded
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.documents[d.ID] = d.Clone()
	tx.recordChange(domain.Change{Entity: domain.EntityDocument, Action: domain.ActionCreate, After: d.Clone()})
	return d.Clone(), nil
}

// UpdateDocument mutates a document record.
func (tx *Tx) UpdateDocument(id string, mutator func(*domain.Document) error) (domain.Document, error) {
	current, ok := tx.state.documents[id]
	if !ok {
		return domain.Document{}, domain.ErrNotFound{Entity: domain.EntityDocument, ID: id}
	}
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return domain.Document{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.documents[id] = current.Clone()
	tx.recordChange(domain.Change{Entity: domain.EntityDocument, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// DeleteDocument removes a document record.
func (tx *Tx) DeleteDocument(id string) error {
	current, ok := tx.state.documents[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityDocument, ID: id}
	}
	delete(tx.state.documents, id)
	tx.recordChange(domain.Change{Entity: domain.EntityDocument, Action: domain.ActionDelete, Before: current.Clone()})
	return nil
}

// FindTask retrieves a task from the transactional state.
func (tx *Tx) FindTask(id string) (domain.Task, bool) {
	t, ok := tx.state.tasks[id]
	if !ok {
		return domain.Task{}, false
	}
	return t.Clone(), true
}

// FindGoal retrieves a goal from the transactional state.
func (tx *Tx) FindGoal(id string) (domain.Goal, bool) {
	g, ok := tx.state.goals[id]
	if !ok {
		return domain.Goal{}, false
	}
	return g.Clone(), true
}

// FindConnection retrieves a connection from the transactional state.
func (tx *Tx) FindConnection(id string) (domain.Connection, bool) {
	c, ok := tx.state.connections[id]
	if !ok {
		return domain.Connection{}, false
	}
	return c.Clone(), true
}

// FindDocument retrieves a document from the transactional state.
func (tx *Tx) FindDocument(id string) (domain.Document, bool) {
	d, ok := tx.state.documents[id]
	if !ok {
		return domain.Document{}, false
	}
	return d.Clone(), true
}

// Rule view over a state snapshot ----------------------------------------

func (v view) ListTasks() []domain.Task {
	return sortedValues(v.state.tasks, func(t domain.Task) domain.Base { return t.Base })
}

func (v view) ListGoals() []domain.Goal {
	return sortedValues(v.state.goals, func(g domain.Goal) domain.Base { return g.Base })
}

func (v view) ListNotifications() []domain.Notification {
	return sortedValues(v.state.notifications, func(n domain.Notification) domain.Base { return n.Base })
}

func (v view) ListConnections() []domain.Connection {
	return sortedValues(v.state.connections, func(c domain.Connection) domain.Base { return c.Base })
}

func (v view) ListDocuments() []domain.Document {
	return sortedValues(v.state.documents, func(d domain.Document) domain.Base { return d.Base })
}

func (v view) FindTask(id string) (domain.Task, bool) {
	t, ok := v.state.tasks[id]
	if !ok {
		return domain.Task{}, false
	}
	return t.Clone(), true
}

func (v view) FindGoal(id string) (domain.Goal, bool) {
	g, ok := v.state.goals[id]
	if !ok {
		return domain.Goal{}, false
	}
	return g.Clone(), true
}

func (v view) FindNotification(id string) (domain.Notification, bool) {
	n, ok := v.state.notifications[id]
	if !ok {
		return domain.Notification{}, false
	}
	return n.Clone(), true
}

func (v view) FindConnection(id string) (domain.Connection, bool) {
	c, ok := v.state.connections[id]
	if !ok {
		return domain.Connection{}, false
	}
	return c.Clone(), true
}

func (v view) FindDocument(id string) (domain.Document, bool) {
	d, ok := v.state.documents[id]
	if !ok {
		return domain.Document{}, false
	}
	return d.Clone(), true
}

// Read helpers over committed state ---------------------------------------

// GetTask retrieves a task by ID from committed state.
func (s *Store) GetTask(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.tasks[id]
	if !ok {
		return domain.Task{}, false
	}
	return t.Clone(), true
}

// ListTasks returns all tasks from committed state in creation order.
func (s *Store) ListTasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.state.tasks, func(t domain.Task) domain.Base { return t.Base })
}

// GetGoal retrieves a goal by ID.
func (s *Store) GetGoal(id string) (domain.Goal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.state.goals[id]
	if !ok {
		return domain.Goal{}, false
	}
	return g.Clone(), true
}

// ListGoals returns all goals in creation order.
func (s *Store) ListGoals() []domain.Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.state.goals, func(g domain.Goal) domain.Base { return g.Base })
}

// GetNotification retrieves a notification by ID.
func (s *Store) GetNotification(id string) (domain.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.state.notifications[id]
	if !ok {
		return domain.Notification{}, false
	}
	return n.Clone(), true
}

// ListNotifications returns all notifications in creation order.
func (s *Store) ListNotifications() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.state.notifications, func(n domain.Notification) domain.Base { return n.Base })
}

// GetConnection retrieves a connection by ID.
func (s *Store) GetConnection(id string) (domain.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.connections[id]
	if !ok {
		return domain.Connection{}, false
	}
	return c.Clone(), true
}

// ListConnections returns all connections in creation order.
func (s *Store) ListConnections() []domain.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.state.connections, func(c domain.Connection) domain.Base { return c.Base })
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(id string) (domain.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.documents[id]
	if !ok {
		return domain.Document{}, false
	}
	return d.Clone(), true
}

// ListDocuments returns all documents in creation order.
func (s *Store) ListDocuments() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.state.documents, func(d domain.Document) domain.Base { return d.Base })
}

// sortedValues clones map values ordered by creation time then ID so list
// output is stable across snapshots.
func sortedValues[E interface{ Clone() E }](m map[string]E, base func(E) domain.Base) []E {
	out := make([]E, 0, len(m))
	for _, v := range m {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := base(out[i]), base(out[j])
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}
