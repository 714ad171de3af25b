// Package audit defines the domain contract for the ledger audit trail.
// Every mutating operation records who changed which financial record and how;
// the DB-backed implementation lives in infrastructure/storage/postgres.
package audit

import (
	"context"

	"timberlot/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Entry describes one audited change.
type Entry struct {
	EntityType string
	EntityID   id.ID
	Action     Action

	// Changes is the serializable payload describing the change
	// (typically the record after mutation).
	Changes any
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Nop is a Recorder that discards entries. Used in tests and tooling.
type Nop struct{}

func (Nop) Record(ctx context.Context, entry Entry) error { return nil }

var _ Recorder = Nop{}
