package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a Store backed by PostgreSQL. Schema:
//
//	CREATE TABLE audit_events (
//	    id         TEXT PRIMARY KEY,
//	    actor_id   TEXT NULL,
//	    action     TEXT NOT NULL,
//	    ip_address TEXT NOT NULL DEFAULT '',
//	    user_agent TEXT NOT NULL DEFAULT '',
//	    metadata   JSONB NOT NULL DEFAULT '{}',
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_events_actor_created ON audit_events (actor_id, created_at DESC);
//	CREATE INDEX audit_events_action_created ON audit_events (action, created_at DESC);
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore over an existing connection pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Insert implements Store.
func (s *PgStore) Insert(ctx context.Context, ev Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, actor_id, action, ip_address, user_agent, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.ActorID, ev.Action, ev.IPAddress, ev.UserAgent, ev.Metadata, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event %s: %w", ev.ID, err)
	}
	return nil
}

// Query implements Store.
func (s *PgStore) Query(ctx context.Context, f Filter) ([]Event, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.IPAddress != "" {
		add("ip_address = $%d", AnonymizeIP(f.IPAddress))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}

	query := `SELECT id, actor_id, action, ip_address, user_agent, metadata, created_at FROM audit_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.ActorID, &ev.Action, &ev.IPAddress,
			&ev.UserAgent, &ev.Metadata, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountByAction implements Store.
func (s *PgStore) CountByAction(ctx context.Context, action string, from, to time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM audit_events WHERE action = $1 AND created_at BETWEEN $2 AND $3`,
		action, from, to,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit events for %s: %w", action, err)
	}
	return count, nil
}

// DeleteOlderThan implements Store.
func (s *PgStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, keep []string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM audit_events WHERE created_at < $1 AND NOT (action = ANY($2))`,
		cutoff, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("purge audit events before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return int(tag.RowsAffected()), nil
}

// ScrubActor implements Store.
func (s *PgStore) ScrubActor(ctx context.Context, actorID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE audit_events
		 SET actor_id = NULL,
		     metadata = metadata || '{"deleted_user": true}'::jsonb
		 WHERE actor_id = $1`,
		actorID,
	)
	if err != nil {
		return 0, fmt.Errorf("scrub audit events for actor: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
