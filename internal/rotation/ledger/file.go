// Package ledger provides the persistent rotation ledger backends.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	roterrors "github.com/credstack/rotor/internal/errors"
	"github.com/credstack/rotor/internal/rotation"
)

// FileLedger stores one JSON record per secret type under a private
// directory. Mutual exclusion is a lock file created with O_EXCL, so the
// check and the claim are a single atomic operation even across processes.
type FileLedger struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewFileLedger creates a ledger rooted at dir. The directory is created
// lazily on first Begin.
func NewFileLedger(dir string) *FileLedger {
	return &FileLedger{
		dir: dir,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Used in tests.
func (l *FileLedger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Begin claims the per-type lock and writes the opening record. When a
// stale lock had to be broken, the record it guarded is returned with
// status EXPIRED.
func (l *FileLedger) Begin(_ context.Context, rec *rotation.Record) (*rotation.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	expired, err := l.acquireLock(rec)
	if err != nil {
		return nil, err
	}
	if err := l.writeRecord(rec); err != nil {
		os.Remove(l.lockPath(rec.SecretType))
		return nil, err
	}
	return expired, nil
}

// acquireLock creates the lock file, breaking a stale lock whose record has
// outlived its rollback deadline by marking that record EXPIRED first.
func (l *FileLedger) acquireLock(rec *rotation.Record) (*rotation.Record, error) {
	lockPath := l.lockPath(rec.SecretType)
	var expired *rotation.Record

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintln(f, rec.RotationID)
			return expired, f.Close()
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		existing, readErr := l.readRecord(rec.SecretType)
		if readErr != nil {
			// Lock without a readable record: treat the holder as unknown.
			return nil, &roterrors.AlreadyInProgressError{SecretType: rec.SecretType}
		}
		if !existing.Expired(l.now()) {
			return nil, &roterrors.AlreadyInProgressError{
				SecretType: existing.SecretType,
				RotationID: existing.RotationID,
				StartedAt:  existing.StartTime,
			}
		}

		// The holder died past its rollback deadline. Close it out and
		// retry the claim once.
		if err := existing.TransitionTo(rotation.StatusExpired, l.now(),
			fmt.Errorf("rollback deadline elapsed with rotation still open")); err != nil {
			return nil, err
		}
		if err := l.writeRecord(existing); err != nil {
			return nil, err
		}
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
		expired = existing
	}

	return nil, &roterrors.AlreadyInProgressError{SecretType: rec.SecretType}
}

// Update persists the record and releases the lock once it is terminal.
func (l *FileLedger) Update(_ context.Context, rec *rotation.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writeRecord(rec); err != nil {
		return err
	}
	if rec.Status.IsTerminal() {
		if err := os.Remove(l.lockPath(rec.SecretType)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to release lock: %w", err)
		}
	}
	return nil
}

// Get returns the most recent record for a secret type.
func (l *FileLedger) Get(_ context.Context, secretType string) (*rotation.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readRecord(secretType)
}

// All returns the most recent record of every secret type, sorted by type.
func (l *FileLedger) All(_ context.Context) ([]rotation.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ledger directory: %w", err)
	}

	var records []rotation.Record
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec rotation.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].SecretType < records[j].SecretType
	})
	return records, nil
}

func (l *FileLedger) readRecord(secretType string) (*rotation.Record, error) {
	data, err := os.ReadFile(l.recordPath(secretType))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rotation.ErrNoRecord
		}
		return nil, fmt.Errorf("failed to read ledger record: %w", err)
	}

	var rec rotation.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger record: %w", err)
	}
	return &rec, nil
}

func (l *FileLedger) writeRecord(rec *rotation.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger record: %w", err)
	}
	if err := os.WriteFile(l.recordPath(rec.SecretType), data, 0o600); err != nil {
		return fmt.Errorf("failed to write ledger record: %w", err)
	}
	return nil
}

func (l *FileLedger) recordPath(secretType string) string {
	return filepath.Join(l.dir, sanitizeFilename(secretType)+".json")
}

func (l *FileLedger) lockPath(secretType string) string {
	return filepath.Join(l.dir, sanitizeFilename(secretType)+".lock")
}

// sanitizeFilename replaces characters that might be problematic in filenames.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
		" ", "_",
	)
	return replacer.Replace(name)
}
