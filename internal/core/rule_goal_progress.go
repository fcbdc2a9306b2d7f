package core

import (
	"context"
	"fmt"

	"neurolearn/pkg/domain"
)

// GoalProgressRule keeps goal progress within 0..100 and requires completed
// goals to report full progress. Archiving a goal with open progress is
// allowed but flagged as a warning.
func GoalProgressRule() domain.Rule {
	return goalProgressRule{}
}

type goalProgressRule struct{}

func (goalProgressRule) Name() string { return "goal_progress" }

func (goalProgressRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var result Result
	for _, change := range changes {
		if change.Entity != EntityGoal || change.Action == ActionDelete {
			continue
		}
		goal, ok := change.After.(Goal)
		if !ok {
			continue
		}
		if goal.Progress < 0 || goal.Progress > 100 {
			result.Violations = append(result.Violations, Violation{
				Rule:     "goal_progress",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("goal progress %d outside 0..100", goal.Progress),
				Entity:   EntityGoal,
				EntityID: goal.ID,
			})
			continue
		}
		if goal.Status == GoalStatusCompleted && goal.Progress != 100 {
			result.Violations = append(result.Violations, Violation{
				Rule:     "goal_progress",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("completed goal reports %d%% progress", goal.Progress),
				Entity:   EntityGoal,
				EntityID: goal.ID,
			})
		}
		if goal.Status == GoalStatusArchived && goal.Progress < 100 {
			result.Violations = append(result.Violations, Violation{
				Rule:     "goal_progress",
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("archiving goal at %d%% progress", goal.Progress),
				Entity:   EntityGoal,
				EntityID: goal.ID,
			})
		}
	}
	return result, nil
}
