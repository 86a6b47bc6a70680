// Package api serves the engine's operational HTTP surface: liveness,
// readiness and a status snapshot of the scheduler, outbox and bus. It has
// no task CRUD endpoints; tasks are owned by the upstream task service.
package api
