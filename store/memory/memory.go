// Package memory is an in-process CredentialStore and EventStore for
// development servers and load tests. Data is lost on exit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authguard"
)

// ErrDuplicate is returned by CreateCredential for a taken id or identifier.
var ErrDuplicate = authguard.ErrCredentialExists

// Store keeps credentials and events in maps guarded by one mutex.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*authguard.CredentialRecord
	byIdent map[string]string
	events  []authguard.SecurityEvent
	seen    map[string]struct{}
}

var (
	_ authguard.CredentialStore = (*Store)(nil)
	_ authguard.EventStore      = (*Store)(nil)
)

func New() *Store {
	return &Store{
		byID:    make(map[string]*authguard.CredentialRecord),
		byIdent: make(map[string]string),
		seen:    make(map[string]struct{}),
	}
}

func identKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func copyRecord(r *authguard.CredentialRecord) *authguard.CredentialRecord {
	out := *r
	if r.LockedUntil != nil {
		t := *r.LockedUntil
		out.LockedUntil = &t
	}
	if r.LastLoginAt != nil {
		t := *r.LastLoginAt
		out.LastLoginAt = &t
	}
	return &out
}

func (s *Store) CreateCredential(_ context.Context, rec authguard.CredentialRecord) error {
	if rec.Status == "" {
		rec.Status = authguard.AccountActive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rec.UserID]; ok {
		return ErrDuplicate
	}
	key := identKey(rec.Identifier)
	if _, ok := s.byIdent[key]; ok {
		return ErrDuplicate
	}
	s.byID[rec.UserID] = copyRecord(&rec)
	s.byIdent[key] = rec.UserID
	return nil
}

func (s *Store) GetCredentialByIdentifier(_ context.Context, identifier string) (*authguard.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIdent[identKey(identifier)]
	if !ok {
		return nil, authguard.ErrCredentialNotFound
	}
	return copyRecord(s.byID[id]), nil
}

func (s *Store) GetCredentialByID(_ context.Context, userID string) (*authguard.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[userID]
	if !ok {
		return nil, authguard.ErrCredentialNotFound
	}
	return copyRecord(rec), nil
}

func (s *Store) UpdateLockState(_ context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[userID]
	if !ok {
		return authguard.ErrCredentialNotFound
	}
	rec.FailedAttempts = failedAttempts
	rec.LockedUntil = nil
	if lockedUntil != nil {
		t := *lockedUntil
		rec.LockedUntil = &t
	}
	return nil
}

func (s *Store) RecordLogin(_ context.Context, userID string, at time.Time, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[userID]
	if !ok {
		return authguard.ErrCredentialNotFound
	}
	rec.LastLoginAt = &at
	rec.LastLoginIP = ip
	rec.FailedAttempts = 0
	rec.LockedUntil = nil
	return nil
}

func (s *Store) SetStatus(_ context.Context, userID string, status authguard.AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[userID]
	if !ok {
		return authguard.ErrCredentialNotFound
	}
	rec.Status = status
	return nil
}

// AppendSecurityEvent stores event once per id.
func (s *Store) AppendSecurityEvent(_ context.Context, event authguard.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID != "" {
		if _, dup := s.seen[event.ID]; dup {
			return nil
		}
		s.seen[event.ID] = struct{}{}
	}
	s.events = append(s.events, event)
	return nil
}

// ListSecurityEvents returns the newest events for userID, at most limit. An
// empty userID matches every event.
func (s *Store) ListSecurityEvents(_ context.Context, userID string, limit int) ([]authguard.SecurityEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	s.mu.RLock()
	var out []authguard.SecurityEvent
	for _, ev := range s.events {
		if userID == "" || ev.UserID == userID {
			out = append(out, ev)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
