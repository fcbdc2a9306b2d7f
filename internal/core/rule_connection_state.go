package core

import (
	"context"
	"fmt"

	"neurolearn/pkg/domain"
)

// ConnectionStateRule enforces the connection lifecycle: requests start
// pending, pending requests may be accepted, declined, or blocked, accepted
// connections may only move to blocked, and blocked is terminal. It also
// blocks self-connections and duplicate edges between the same pair.
func ConnectionStateRule() domain.Rule {
	return connectionStateRule{}
}

type connectionStateRule struct{}

func (connectionStateRule) Name() string { return "connection_state" }

var connectionTransitions = map[ConnectionStatus]map[ConnectionStatus]struct{}{
	ConnectionPending: {
		ConnectionPending:  {},
		ConnectionAccepted: {},
		ConnectionDeclined: {},
		ConnectionBlocked:  {},
	},
	ConnectionAccepted: {
		ConnectionAccepted: {},
		ConnectionBlocked:  {},
	},
	ConnectionDeclined: {
		ConnectionDeclined: {},
		ConnectionBlocked:  {},
	},
	ConnectionBlocked: {
		ConnectionBlocked: {},
	},
}

func (connectionStateRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	var result Result
	for _, change := range changes {
		if change.Entity != EntityConnection || change.Action == ActionDelete {
			continue
		}
		conn, ok := change.After.(Connection)
		if !ok {
			continue
		}
		switch change.Action {
		case ActionCreate:
			if conn.Status != ConnectionPending {
				result.Violations = append(result.Violations, Violation{
					Rule:     "connection_state",
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("new connections must start pending, got %q", conn.Status),
					Entity:   EntityConnection,
					EntityID: conn.ID,
				})
			}
			if conn.RequesterID == conn.AddresseeID {
				result.Violations = append(result.Violations, Violation{
					Rule:     "connection_state",
					Severity: SeverityBlock,
					Message:  "connection requester and addressee are the same user",
					Entity:   EntityConnection,
					EntityID: conn.ID,
				})
			}
			for _, existing := range view.ListConnections() {
				if existing.ID == conn.ID {
					continue
				}
				if samePair(existing, conn) && existing.Status != ConnectionDeclined {
					result.Violations = append(result.Violations, Violation{
						Rule:     "connection_state",
						Severity: SeverityBlock,
						Message:  fmt.Sprintf("connection between %q and %q already exists", conn.RequesterID, conn.AddresseeID),
						Entity:   EntityConnection,
						EntityID: conn.ID,
					})
					break
				}
			}
		case ActionUpdate:
			before, ok := change.Before.(Connection)
			if !ok {
				continue
			}
			allowed, known := connectionTransitions[before.Status]
			if !known {
				continue
			}
			if _, ok := allowed[conn.Status]; !ok {
				result.Violations = append(result.Violations, Violation{
					Rule:     "connection_state",
					Severity: SeverityBlock,
					Message:  fmt.Sprintf("illegal connection transition %q -> %q", before.Status, conn.Status),
					Entity:   EntityConnection,
					EntityID: conn.ID,
				})
			}
		}
	}
	return result, nil
}

func samePair(a, b Connection) bool {
	if a.RequesterID == b.RequesterID && a.AddresseeID == b.AddresseeID {
		return true
	}
	return a.RequesterID == b.AddresseeID && a.AddresseeID == b.RequesterID
}
