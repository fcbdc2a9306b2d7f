package core

import (
	"context"
	"fmt"

	"neurolearn/pkg/domain"
)

// NotificationRefRule warns when a notification points at an entity that does
// not exist in the same transaction snapshot. Dangling references are allowed
// (the target may be deleted later anyway) but flagged.
func NotificationRefRule() domain.Rule {
	return notificationRefRule{}
}

type notificationRefRule struct{}

func (notificationRefRule) Name() string { return "notification_ref" }

func (notificationRefRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	var result Result
	for _, change := range changes {
		if change.Entity != EntityNotification || change.Action == ActionDelete {
			continue
		}
		n, ok := change.After.(Notification)
		if !ok || n.EntityRef == nil {
			continue
		}
		if !refResolves(view, *n.EntityRef) {
			result.Violations = append(result.Violations, Violation{
				Rule:     "notification_ref",
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("notification references missing %s %q", n.EntityRef.Type, n.EntityRef.ID),
				Entity:   EntityNotification,
				EntityID: n.ID,
			})
		}
	}
	return result, nil
}

func refResolves(view domain.RuleView, ref EntityRef) bool {
	switch ref.Type {
	case EntityTask:
		_, ok := view.FindTask(ref.ID)
		return ok
	case EntityGoal:
		_, ok := view.FindGoal(ref.ID)
		return ok
	case EntityNotification:
		_, ok := view.FindNotification(ref.ID)
		return ok
	case EntityConnection:
		_, ok := view.FindConnection(ref.ID)
		return ok
	case EntityDocument:
		_, ok := view.FindDocument(ref.ID)
		return ok
	default:
		return false
	}
}
