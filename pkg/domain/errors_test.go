package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFoundUnwraps(t *testing.T) {
	base := ErrNotFound{Entity: EntityTask, ID: "t1"}
	if !IsNotFound(base) {
		t.Fatal("direct ErrNotFound not detected")
	}
	if !IsNotFound(fmt.Errorf("load task: %w", base)) {
		t.Fatal("wrapped ErrNotFound not detected")
	}
	if IsNotFound(errors.New("task t1 not found")) {
		t.Fatal("plain error misclassified as not-found")
	}
}

func TestErrorMessages(t *testing.T) {
	notFound := ErrNotFound{Entity: EntityGoal, ID: "g1"}
	if got := notFound.Error(); got != `goal "g1" not found` {
		t.Fatalf("not-found message = %q", got)
	}
	exists := ErrAlreadyExists{Entity: EntityTask, ID: "t1"}
	if got := exists.Error(); got != `task "t1" already exists` {
		t.Fatalf("already-exists message = %q", got)
	}
}
