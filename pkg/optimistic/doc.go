// Package optimistic implements the shared optimistic-update state container
// used by the NeuroLearn screens (tasks, goals, notifications, connections).
//
// A Collection is the single in-memory source of truth for one screen's
// entity list. Mutations apply a local transform immediately, attempt the
// matching remote operation, and either reconcile with the authoritative
// response or restore the pre-mutation snapshot exactly. User feedback goes
// through an injected Notifier so the executor stays testable without a UI.
package optimistic
