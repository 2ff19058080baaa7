package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"aibridge.io/internal/audit"
)

// AuditSink appends audit records to audit_records.
type AuditSink struct {
	db *sql.DB
}

var _ audit.Sink = (*AuditSink)(nil)

func NewAuditSink(db *sql.DB) *AuditSink { return &AuditSink{db: db} }

func (s *AuditSink) Write(ctx context.Context, r audit.Record) error {
	meta := []byte("{}")
	if len(r.Metadata) > 0 {
		b, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		meta = b
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_records (id, occurred_at, actor_id, kind, resource, outcome, reason, request_id, metadata)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		on conflict (id) do nothing
	`, r.ID, r.OccurredAt, r.ActorID, r.Kind, r.Resource, string(r.Outcome), r.Reason, r.RequestID, meta)
	return err
}

// Recent returns the newest records first, for the operator CLI.
func (s *AuditSink) Recent(ctx context.Context, since time.Time, limit int) ([]audit.Record, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, occurred_at, actor_id, kind, resource, outcome, reason, request_id, metadata
		from audit_records
		where occurred_at >= $1
		order by occurred_at desc
		limit $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []audit.Record
	for rows.Next() {
		var (
			r       audit.Record
			outcome string
			meta    []byte
		)
		if err := rows.Scan(&r.ID, &r.OccurredAt, &r.ActorID, &r.Kind, &r.Resource, &outcome, &r.Reason, &r.RequestID, &meta); err != nil {
			return nil, err
		}
		r.Outcome = audit.Outcome(outcome)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
