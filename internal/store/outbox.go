package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Op is the kind of remote mirror operation a pending entry replays.
type Op string

const (
	// OpSet replays a full-document overwrite from the JSON payload.
	OpSet Op = "set"
	// OpDelete replays a document removal. The payload is empty.
	OpDelete Op = "delete"
)

// Entity names the collection a pending entry targets.
type Entity string

const (
	EntityPost    Entity = "post"
	EntityProfile Entity = "profile"
)

// PendingOp is a remote mirror operation that failed and is waiting to be
// replayed by the drain loop.
type PendingOp struct {
	ID       int64
	Entity   Entity
	Op       Op
	EntityID string
	// Payload is the JSON-encoded record for set ops; empty for deletes.
	Payload  []byte
	Attempts int
	// EnqueuedAt is epoch milliseconds.
	EnqueuedAt int64
}

// Outbox is the persisted queue of unmirrored remote operations. Entries stay
// until a replay succeeds, so a restart never loses a pending mirror.
type Outbox struct {
	db *sql.DB
}

// Enqueue appends a pending operation. The entry's ID is filled in after
// insert; EnqueuedAt defaults to now when unset.
func (o *Outbox) Enqueue(ctx context.Context, op *PendingOp) error {
	if op.EnqueuedAt == 0 {
		op.EnqueuedAt = time.Now().UnixMilli()
	}
	const q = `
		INSERT INTO outbox (entity, op, entity_id, payload, attempts, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := o.db.ExecContext(ctx, q,
		string(op.Entity), string(op.Op), op.EntityID, string(op.Payload),
		op.Attempts, op.EnqueuedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueueing %s %s %q: %w", op.Entity, op.Op, op.EntityID, err)
	}
	id, err := res.LastInsertId()
	if err == nil && id > 0 {
		op.ID = id
	}
	return nil
}

// Pending returns up to limit entries, oldest first. limit <= 0 means all.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]*PendingOp, error) {
	q := `SELECT id, entity, op, entity_id, payload, attempts, enqueued_at
		FROM outbox ORDER BY enqueued_at ASC, id ASC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := o.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ops []*PendingOp
	for rows.Next() {
		var op PendingOp
		var entity, opKind, payload string
		if err := rows.Scan(&op.ID, &entity, &opKind, &op.EntityID, &payload,
			&op.Attempts, &op.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scanning outbox row: %w", err)
		}
		op.Entity = Entity(entity)
		op.Op = Op(opKind)
		op.Payload = []byte(payload)
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

// Delete removes a replayed entry.
func (o *Outbox) Delete(ctx context.Context, id int64) error {
	if _, err := o.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting outbox entry %d: %w", id, err)
	}
	return nil
}

// PurgeEntity removes every pending entry targeting the given record. Called
// after a successful mirror: any queued operation for the record is older
// than the state just written, and replaying it would overwrite newer remote
// state.
func (o *Outbox) PurgeEntity(ctx context.Context, entity Entity, entityID string) error {
	const q = `DELETE FROM outbox WHERE entity = ? AND entity_id = ?`
	if _, err := o.db.ExecContext(ctx, q, string(entity), entityID); err != nil {
		return fmt.Errorf("purging outbox entries for %s %q: %w", entity, entityID, err)
	}
	return nil
}

// Bump increments the attempt counter after a failed replay.
func (o *Outbox) Bump(ctx context.Context, id int64) error {
	const q = `UPDATE outbox SET attempts = attempts + 1 WHERE id = ?`
	if _, err := o.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("bumping outbox entry %d: %w", id, err)
	}
	return nil
}

// Depth returns the number of pending entries. Exposed as an observability
// gauge by the sync engine.
func (o *Outbox) Depth(ctx context.Context) (int, error) {
	var n int
	if err := o.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting outbox entries: %w", err)
	}
	return n, nil
}
