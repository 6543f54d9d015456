// Package session provides an advisory single-writer lease for
// overlapping agent sessions on one machine. The lease is a small JSON
// file created with O_EXCL; an expired lease may be broken by the next
// acquirer. It is operator convenience, not a hard mutual-exclusion
// guarantee across machines.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/raido/internal/apperr"
)

// Lease describes the current session holder.
type Lease struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Expired reports whether the lease has passed its expiry.
func (l *Lease) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// Acquire takes the lease at path for owner with the given ttl. A live
// lease held by someone else yields apperr.ErrConflict; an expired
// lease is broken and re-acquired.
func Acquire(path, owner string, ttl time.Duration) (*Lease, error) {
	if owner == "" {
		return nil, fmt.Errorf("session: empty owner")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("session: mkdir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now().UTC()
		lease := &Lease{Owner: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(lease); encErr != nil {
				f.Close()
				_ = os.Remove(path)
				return nil, fmt.Errorf("session: write lease: %w", encErr)
			}
			if closeErr := f.Close(); closeErr != nil {
				return nil, fmt.Errorf("session: close lease: %w", closeErr)
			}
			return lease, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("session: create lease: %w", err)
		}

		current, readErr := Current(path)
		if readErr != nil {
			return nil, readErr
		}
		if current == nil {
			// Holder released between our attempts, or the file is
			// corrupt; clear it and try again.
			_ = os.Remove(path)
			continue
		}
		if current.Owner == owner || current.Expired(now) {
			// Re-entrant acquire or stale holder: break and retry.
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				return nil, fmt.Errorf("session: break stale lease: %w", rmErr)
			}
			continue
		}
		return nil, fmt.Errorf("session: held by %s until %s: %w",
			current.Owner, current.ExpiresAt.Format(time.RFC3339), apperr.ErrConflict)
	}
	return nil, fmt.Errorf("session: lease contention on %s: %w", path, apperr.ErrConflict)
}

// Release removes the lease if owner still holds it. Releasing a lease
// held by someone else is a conflict; a missing lease is a no-op.
func Release(path, owner string) error {
	current, err := Current(path)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	if current.Owner != owner {
		return fmt.Errorf("session: held by %s, not %s: %w", current.Owner, owner, apperr.ErrConflict)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: release: %w", err)
	}
	return nil
}

// Current returns the lease at path, or nil when none exists. A
// corrupt lease file is treated as absent so a crashed writer cannot
// wedge every future session.
func Current(path string) (*Lease, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: read lease: %w", err)
	}
	var lease Lease
	if err := json.Unmarshal(data, &lease); err != nil {
		return nil, nil
	}
	return &lease, nil
}
