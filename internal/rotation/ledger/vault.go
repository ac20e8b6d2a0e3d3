package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/hashicorp/vault/api"

	roterrors "github.com/credstack/rotor/internal/errors"
	"github.com/credstack/rotor/internal/rotation"
)

// ledgerPrefix is where rotation records live inside the KV v2 mount.
const ledgerPrefix = "rotor/ledger"

// logicalAPI is the subset of the Vault logical client the ledger uses.
// Satisfied by *api.Logical; mocked in tests.
type logicalAPI interface {
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
	WriteWithContext(ctx context.Context, path string, data map[string]interface{}) (*api.Secret, error)
	ListWithContext(ctx context.Context, path string) (*api.Secret, error)
}

// VaultLedger stores rotation records in a KV v2 mount, using Check-And-Set
// writes so two hosts racing to open a rotation cannot both win.
type VaultLedger struct {
	logical logicalAPI
	mount   string
	now     func() time.Time
}

// NewVaultLedger creates a ledger on an authenticated Vault client.
func NewVaultLedger(client *api.Client, mount string) *VaultLedger {
	return newVaultLedgerWithLogical(client.Logical(), mount)
}

func newVaultLedgerWithLogical(logical logicalAPI, mount string) *VaultLedger {
	if mount == "" {
		mount = "secret"
	}
	return &VaultLedger{
		logical: logical,
		mount:   mount,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Used in tests.
func (l *VaultLedger) SetClock(now func() time.Time) {
	l.now = now
}

// Begin opens a rotation with a conditional write: cas=0 when no record
// exists, cas=<current version> when superseding a terminal or expired one.
// A superseded stale record is returned with status EXPIRED.
func (l *VaultLedger) Begin(ctx context.Context, rec *rotation.Record) (*rotation.Record, error) {
	existing, version, err := l.read(ctx, rec.SecretType)
	if err != nil && err != rotation.ErrNoRecord {
		return nil, err
	}

	var expired *rotation.Record
	if existing != nil && !existing.Status.IsTerminal() {
		if !existing.Expired(l.now()) {
			return nil, &roterrors.AlreadyInProgressError{
				SecretType: existing.SecretType,
				RotationID: existing.RotationID,
				StartedAt:  existing.StartTime,
			}
		}
		if err := existing.TransitionTo(rotation.StatusExpired, l.now(),
			fmt.Errorf("rollback deadline elapsed with rotation still open")); err != nil {
			return nil, err
		}
		if err := l.write(ctx, existing, version); err != nil {
			return nil, err
		}
		version++
		expired = existing
	}

	return expired, l.write(ctx, rec, version)
}

// Update rewrites the record conditioned on the version Begin left behind.
func (l *VaultLedger) Update(ctx context.Context, rec *rotation.Record) error {
	_, version, err := l.read(ctx, rec.SecretType)
	if err != nil {
		return err
	}
	return l.write(ctx, rec, version)
}

// Get returns the most recent record for a secret type.
func (l *VaultLedger) Get(ctx context.Context, secretType string) (*rotation.Record, error) {
	rec, _, err := l.read(ctx, secretType)
	return rec, err
}

// All lists every secret type the ledger has seen and returns each record.
func (l *VaultLedger) All(ctx context.Context) ([]rotation.Record, error) {
	listed, err := l.logical.ListWithContext(ctx, path.Join(l.mount, "metadata", ledgerPrefix))
	if err != nil {
		return nil, fmt.Errorf("vault ledger list: %w", err)
	}
	if listed == nil || listed.Data == nil {
		return nil, nil
	}

	keys, ok := listed.Data["keys"].([]interface{})
	if !ok {
		return nil, nil
	}

	var records []rotation.Record
	for _, key := range keys {
		name, ok := key.(string)
		if !ok {
			continue
		}
		rec, _, err := l.read(ctx, name)
		if err != nil {
			continue
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].SecretType < records[j].SecretType
	})
	return records, nil
}

// read returns the current record and the KV v2 version holding it.
func (l *VaultLedger) read(ctx context.Context, secretType string) (*rotation.Record, int, error) {
	secret, err := l.logical.ReadWithContext(ctx, l.dataPath(secretType))
	if err != nil {
		return nil, 0, fmt.Errorf("vault ledger read %s: %w", secretType, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, 0, rotation.ErrNoRecord
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, 0, rotation.ErrNoRecord
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, 0, fmt.Errorf("vault ledger decode %s: %w", secretType, err)
	}
	var rec rotation.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, 0, fmt.Errorf("vault ledger decode %s: %w", secretType, err)
	}

	version := 0
	if meta, ok := secret.Data["metadata"].(map[string]interface{}); ok {
		if num, ok := meta["version"].(json.Number); ok {
			if v, err := num.Int64(); err == nil {
				version = int(v)
			}
		}
	}
	return &rec, version, nil
}

// write performs the CAS write. Vault rejects the request when another
// writer got there first, which surfaces as an error to the caller.
func (l *VaultLedger) write(ctx context.Context, rec *rotation.Record, casVersion int) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("vault ledger encode %s: %w", rec.SecretType, err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("vault ledger encode %s: %w", rec.SecretType, err)
	}

	_, err = l.logical.WriteWithContext(ctx, l.dataPath(rec.SecretType), map[string]interface{}{
		"data":    data,
		"options": map[string]interface{}{"cas": casVersion},
	})
	if err != nil {
		return fmt.Errorf("vault ledger write %s: %w", rec.SecretType, err)
	}
	return nil
}

func (l *VaultLedger) dataPath(secretType string) string {
	return path.Join(l.mount, "data", ledgerPrefix, secretType)
}
