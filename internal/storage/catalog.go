// ABOUTME: Badger-backed signature catalog with status transitions and version history
// ABOUTME: ActiveSignatures hands the scanner an isolated snapshot in catalog order

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// ErrSignatureNotFound is returned when a signature ID is not cataloged.
var ErrSignatureNotFound = errors.New("signature not found")

const catalogSequenceKey = "seq:signatures"

// History actions.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionStatusChanged = "status_changed"
)

// catalogEntry is the stored form of a signature. Seq fixes catalog order.
type catalogEntry struct {
	Seq       uint64           `json:"seq"`
	Signature *types.Signature `json:"signature"`
}

// SignatureVersion is one entry of a signature's change history.
type SignatureVersion struct {
	Version   int              `json:"version"`
	Action    string           `json:"action"`
	Signature *types.Signature `json:"signature"`
	ChangedAt time.Time        `json:"changed_at"`
}

// Catalog stores signatures.
type Catalog struct {
	db  *badger.DB
	seq *badger.Sequence
	now func() time.Time
}

// NewCatalog creates a catalog on top of store.
func NewCatalog(store *Store) (*Catalog, error) {
	seq, err := store.db.GetSequence([]byte(catalogSequenceKey), 64)
	if err != nil {
		return nil, fmt.Errorf("opening catalog sequence: %w", err)
	}

	return &Catalog{
		db:  store.db,
		seq: seq,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the catalog's sequence lease.
func (c *Catalog) Close() error {
	return c.seq.Release()
}

// Put creates or replaces a signature and appends a history version.
// New signatures are appended to the end of the catalog order.
func (c *Catalog) Put(ctx context.Context, sig *types.Signature) error {
	if sig == nil {
		return fmt.Errorf("signature is nil")
	}
	if sig.ID == "" {
		return types.ErrMissingSignatureID
	}
	if sig.ThreatName == "" {
		return types.ErrMissingThreatName
	}

	stored := sig.Clone()
	if stored.Status == "" {
		stored.Status = types.SignatureStatusActual
	}
	stored.UpdatedAt = c.now()

	err := c.db.Update(func(txn *badger.Txn) error {
		var existing catalogEntry
		found, err := getJSON(txn, signaturePrefix+sig.ID, &existing)
		if err != nil {
			return err
		}

		entry := catalogEntry{Seq: existing.Seq, Signature: stored}
		action := ActionUpdated
		if !found {
			action = ActionCreated
			if entry.Seq, err = c.seq.Next(); err != nil {
				return fmt.Errorf("allocating catalog position: %w", err)
			}
		}

		if err := setJSON(txn, signaturePrefix+sig.ID, entry); err != nil {
			return err
		}
		return c.appendHistory(txn, action, stored)
	})
	if err != nil {
		return fmt.Errorf("storing signature %s: %w", sig.ID, err)
	}

	sig.UpdatedAt = stored.UpdatedAt
	sig.Status = stored.Status
	return nil
}

// BatchPut stores sigs one transaction each; it stops at the first error.
func (c *Catalog) BatchPut(ctx context.Context, sigs []*types.Signature) (int, error) {
	for i, sig := range sigs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := c.Put(ctx, sig); err != nil {
			return i, err
		}
	}
	return len(sigs), nil
}

// Get returns a signature by ID.
func (c *Catalog) Get(ctx context.Context, id string) (*types.Signature, error) {
	var entry catalogEntry
	var found bool

	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, signaturePrefix+id, &entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrSignatureNotFound, id)
	}
	return entry.Signature, nil
}

// SetStatus transitions a signature and records the change in history.
func (c *Catalog) SetStatus(ctx context.Context, id string, status types.SignatureStatus) (*types.Signature, error) {
	var updated *types.Signature

	err := c.db.Update(func(txn *badger.Txn) error {
		var entry catalogEntry
		found, err := getJSON(txn, signaturePrefix+id, &entry)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrSignatureNotFound, id)
		}

		entry.Signature.Status = status
		entry.Signature.UpdatedAt = c.now()
		if err := setJSON(txn, signaturePrefix+id, entry); err != nil {
			return err
		}
		updated = entry.Signature
		return c.appendHistory(txn, ActionStatusChanged, entry.Signature)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// List returns signatures in catalog order. An empty status returns all of them.
func (c *Catalog) List(ctx context.Context, status types.SignatureStatus) ([]*types.Signature, error) {
	entries, err := c.entries()
	if err != nil {
		return nil, err
	}

	sigs := make([]*types.Signature, 0, len(entries))
	for _, e := range entries {
		if status == "" || e.Signature.Status == status {
			sigs = append(sigs, e.Signature)
		}
	}
	return sigs, nil
}

// ActiveSignatures returns the scan snapshot: every ACTUAL signature, or only
// the one named by id. The slice and its signatures are copies owned by the caller.
// A named signature that exists but is not ACTUAL yields an empty snapshot.
func (c *Catalog) ActiveSignatures(ctx context.Context, id string) ([]*types.Signature, error) {
	if id != "" {
		sig, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !sig.Status.IsActive() {
			return []*types.Signature{}, nil
		}
		return []*types.Signature{sig.Clone()}, nil
	}

	active, err := c.List(ctx, types.SignatureStatusActual)
	if err != nil {
		return nil, err
	}
	for i, sig := range active {
		active[i] = sig.Clone()
	}
	return active, nil
}

// DiffSince returns signatures of any status changed after since, oldest first.
func (c *Catalog) DiffSince(ctx context.Context, since time.Time) ([]*types.Signature, error) {
	entries, err := c.entries()
	if err != nil {
		return nil, err
	}

	var changed []*types.Signature
	for _, e := range entries {
		if e.Signature.UpdatedAt.After(since) {
			changed = append(changed, e.Signature)
		}
	}
	sort.SliceStable(changed, func(i, j int) bool {
		return changed[i].UpdatedAt.Before(changed[j].UpdatedAt)
	})
	return changed, nil
}

// History returns every recorded version of a signature, oldest first.
func (c *Catalog) History(ctx context.Context, id string) ([]SignatureVersion, error) {
	var versions []SignatureVersion

	err := c.db.View(func(txn *badger.Txn) error {
		return iterateValues(txn, historyPrefix+id+":", func(val []byte) error {
			var v SignatureVersion
			if err := json.Unmarshal(val, &v); err != nil {
				return fmt.Errorf("decoding history: %w", err)
			}
			versions = append(versions, v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSignatureNotFound, id)
	}
	return versions, nil
}

func (c *Catalog) entries() ([]catalogEntry, error) {
	var entries []catalogEntry

	err := c.db.View(func(txn *badger.Txn) error {
		return iterateValues(txn, signaturePrefix, func(val []byte) error {
			var e catalogEntry
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decoding signature: %w", err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing signatures: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Seq < entries[j].Seq
	})
	return entries, nil
}

// appendHistory writes the next version under a zero-padded key so versions
// iterate in order.
func (c *Catalog) appendHistory(txn *badger.Txn, action string, sig *types.Signature) error {
	prefix := historyPrefix + sig.ID + ":"
	version := int(countPrefix(txn, prefix)) + 1

	v := SignatureVersion{
		Version:   version,
		Action:    action,
		Signature: sig,
		ChangedAt: sig.UpdatedAt,
	}
	return setJSON(txn, fmt.Sprintf("%s%010d", prefix, version), v)
}
