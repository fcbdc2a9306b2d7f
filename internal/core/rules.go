package core

import "neurolearn/pkg/domain"

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(TaskStatusRule())
	engine.Register(GoalProgressRule())
	engine.Register(ConnectionStateRule())
	engine.Register(NotificationRefRule())
	return engine
}
