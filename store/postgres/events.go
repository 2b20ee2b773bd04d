package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MrEthical07/authguard"
)

// AppendSecurityEvent inserts event. Duplicate ids are ignored.
func (s *Store) AppendSecurityEvent(ctx context.Context, event authguard.SecurityEvent) error {
	var meta []byte
	if len(event.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(event.Metadata); err != nil {
			return storeErr("encode event metadata", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`insert into security_events (id, event_type, severity, ip, user_id, session_id, confidence, details, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		on conflict (id) do nothing`,
		event.ID, event.Type, string(event.Severity), event.IP, event.UserID, event.SessionID,
		event.Confidence, event.Details, meta, event.Timestamp.UTC())
	if err != nil {
		return storeErr("append security event", err)
	}
	return nil
}

// ListSecurityEvents returns the newest events for userID, at most limit.
// An empty userID lists events of every user.
func (s *Store) ListSecurityEvents(ctx context.Context, userID string, limit int) ([]authguard.SecurityEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, event_type, severity, ip, user_id, session_id, confidence, details, metadata, created_at
		from security_events
		where ($1 = '' or user_id = $1)
		order by created_at desc, id desc
		limit $2`, userID, limit)
	if err != nil {
		return nil, storeErr("list security events", err)
	}
	defer rows.Close()

	var out []authguard.SecurityEvent
	for rows.Next() {
		var (
			ev       authguard.SecurityEvent
			severity string
			meta     []byte
			at       time.Time
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &severity, &ev.IP, &ev.UserID, &ev.SessionID,
			&ev.Confidence, &ev.Details, &meta, &at); err != nil {
			return nil, storeErr("scan security event", err)
		}
		ev.Severity = authguard.Severity(severity)
		ev.Timestamp = at
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ev.Metadata); err != nil {
				return nil, storeErr("decode event metadata", err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list security events", err)
	}
	return out, nil
}
