package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"neurolearn/pkg/domain"
)

// stubConn is a minimal database/sql driver backing the snapshot table.
type stubConn struct {
	mu      sync.Mutex
	execs   []string
	buckets map[string][]byte
	failTx  bool
}

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{buckets: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *stubConn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, fmt.Errorf("not implemented")
}
func (c *stubConn) Close() error { return nil }
func (c *stubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}
func (c *stubConn) Ping(context.Context) error { return nil }

func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.failTx {
		return nil, fmt.Errorf("begin fail")
	}
	return stubTx{}, nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO STATE") {
		bucket, _ := args[0].Value.(string)
		payload, _ := args[1].Value.([]byte)
		c.buckets[bucket] = append([]byte(nil), payload...)
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(strings.ToUpper(query), "FROM STATE") {
		return nil, fmt.Errorf("unexpected query %q", query)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := &stubRows{}
	for bucket, payload := range c.buckets {
		rows.rows = append(rows.rows, [2]any{bucket, append([]byte(nil), payload...)})
	}
	return rows, nil
}

type stubRows struct {
	rows [][2]any
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }
func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	dest[0] = r.rows[r.idx][0]
	dest[1] = r.rows[r.idx][1]
	r.idx++
	return nil
}

func openStubStore(t *testing.T) (*Store, *stubConn) {
	t.Helper()
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreEnsuresStateTable(t *testing.T) {
	_, conn := openStubStore(t)
	var sawDDL bool
	for _, stmt := range conn.execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS STATE") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL, got execs: %v", conn.execs)
	}
}

func TestRunInTransactionPersistsSnapshot(t *testing.T) {
	store, conn := openStubStore(t)
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateTask(domain.Task{OwnerID: "u1", Title: "persisted task"})
		return err
	}); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	conn.mu.Lock()
	payload := conn.buckets["tasks"]
	conn.mu.Unlock()
	if len(payload) == 0 {
		t.Fatal("tasks bucket never written")
	}
	var tasks []domain.Task
	if err := json.Unmarshal(payload, &tasks); err != nil {
		t.Fatalf("decode bucket: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "persisted task" {
		t.Fatalf("unexpected persisted tasks: %+v", tasks)
	}
}

func TestNewStoreHydratesFromExistingSnapshot(t *testing.T) {
	db, conn := newStubDB()
	seeded := []domain.Goal{{
		Base:    domain.Base{ID: "g1", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
		OwnerID: "u1",
		Title:   "existing goal",
		Status:  domain.GoalStatusActive,
	}}
	payload, err := json.Marshal(seeded)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	conn.buckets["goals"] = payload

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	goal, ok := store.GetGoal("g1")
	if !ok {
		t.Fatal("seeded goal not hydrated")
	}
	if goal.Title != "existing goal" {
		t.Fatalf("unexpected goal: %+v", goal)
	}
}
