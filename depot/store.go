package depot

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/casid"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/metastore"
)

// Store is the default Registry, backed by metastore.Store's
// compare-and-set primitive for both depot commits and the name index.
type Store struct {
	meta metastore.Store
	log  *zap.Logger
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger attaches a structured logger; defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore builds a Registry over meta.
func NewStore(meta metastore.Store, opts ...Option) *Store {
	s := &Store{meta: meta, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func depotKey(realm, depotID string) string {
	return fmt.Sprintf("depot/%s/%s", realm, depotID)
}

func nameIndexKey(realm, name string) string {
	return fmt.Sprintf("depotname/%s/%s", realm, name)
}

func (s *Store) load(ctx context.Context, realm, depotID string) (*Depot, []byte, error) {
	raw, err := s.meta.Get(ctx, depotKey(realm, depotID))
	if err != nil {
		if err == metastore.ErrNotFound {
			return nil, nil, casfaerr.ErrDepotVersionMissing.Withf("depot %q not found in realm %q", depotID, realm)
		}
		return nil, nil, err
	}
	var d Depot
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, nil, casfaerr.ErrInternal.Withf("corrupt depot record %q: %v", depotID, err)
	}
	return &d, raw, nil
}

// Create registers a new depot; name must be unique within realm.
func (s *Store) Create(ctx context.Context, realm, name string, initialRoot codec.Key, maxHistory int, creatorIssuerID, creatorTokenID string) (*Depot, error) {
	var raw16 [16]byte
	if _, err := rand.Read(raw16[:]); err != nil {
		return nil, casfaerr.ErrInternal.Withf("failed to generate depot id: %v", err)
	}
	id := casid.Encode(casid.PrefixDepot, raw16)

	now := time.Now().UTC()
	d := &Depot{
		Realm:           realm,
		DepotID:         id,
		Name:            name,
		Root:            initialRoot,
		MaxHistory:      maxHistory,
		History:         []HistoryEntry{{Root: initialRoot, ParentRoot: codec.Key{}, CommittedAt: now}},
		CreatorIssuerID: creatorIssuerID,
		CreatorTokenID:  creatorTokenID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return nil, casfaerr.ErrInternal.Withf("failed to marshal depot: %v", err)
	}

	if err := s.meta.PutIfAbsent(ctx, nameIndexKey(realm, name), []byte(id)); err != nil {
		if !errors.Is(err, metastore.ErrConditionFailed) {
			return nil, err
		}
		return nil, casfaerr.ErrTargetExists.Withf("depot name %q already exists in realm %q", name, realm)
	}
	if err := s.meta.PutIfAbsent(ctx, depotKey(realm, id), raw); err != nil {
		if !errors.Is(err, metastore.ErrConditionFailed) {
			return nil, err
		}
		return nil, casfaerr.ErrConcurrentReq.Withf("depot id collision for %q", id)
	}
	return d, nil
}

// Get fetches a depot by id.
func (s *Store) Get(ctx context.Context, realm, depotID string) (*Depot, error) {
	d, _, err := s.load(ctx, realm, depotID)
	return d, err
}

// GetByName resolves the name index then fetches the depot.
func (s *Store) GetByName(ctx context.Context, realm, name string) (*Depot, error) {
	idRaw, err := s.meta.Get(ctx, nameIndexKey(realm, name))
	if err != nil {
		if err == metastore.ErrNotFound {
			return nil, casfaerr.ErrDepotVersionMissing.Withf("no depot named %q in realm %q", name, realm)
		}
		return nil, err
	}
	return s.Get(ctx, realm, string(idRaw))
}

// Commit performs an optimistic-concurrency update of a depot's root
// (spec.md §4.7): if expectedRoot is supplied and differs from the current
// root (including the no-prior-commit case), it fails with a structured
// DepotConflict; otherwise a CAS write closes the TOCTOU gap between read
// and write, and a new history entry is inserted at position 0, deduped by
// root and truncated to maxHistory.
func (s *Store) Commit(ctx context.Context, realm, depotID string, newRoot codec.Key, expectedRoot *codec.Key, diff []byte) (*Depot, error) {
	for {
		d, before, err := s.load(ctx, realm, depotID)
		if err != nil {
			return nil, err
		}

		if expectedRoot != nil && d.Root != *expectedRoot {
			return nil, casfaerr.DepotConflict(keyHex(d.Root), keyHex(*expectedRoot))
		}

		oldRoot := d.Root
		d.Root = newRoot
		d.UpdatedAt = time.Now().UTC()
		d.History = prependHistory(d.History, HistoryEntry{
			Root:        newRoot,
			ParentRoot:  oldRoot,
			Diff:        diff,
			CommittedAt: d.UpdatedAt,
		}, d.MaxHistory)

		raw, err := json.Marshal(d)
		if err != nil {
			return nil, casfaerr.ErrInternal.Withf("failed to marshal depot: %v", err)
		}

		if err := s.meta.PutIfMatch(ctx, depotKey(realm, depotID), raw, before); err != nil {
			if errors.Is(err, metastore.ErrConditionFailed) {
				s.log.Debug("depot commit lost the race, retrying", zap.String("depotId", depotID))
				continue // lost the race; reload and retry against fresh state
			}
			return nil, err
		}
		s.log.Info("depot committed", zap.String("depotId", depotID), zap.String("realm", realm))
		return d, nil
	}
}

// Update renames and/or resizes maxHistory (truncating history if lowered).
func (s *Store) Update(ctx context.Context, realm, depotID string, name *string, maxHistory *int) (*Depot, error) {
	d, before, err := s.load(ctx, realm, depotID)
	if err != nil {
		return nil, err
	}

	oldName := d.Name
	if name != nil && *name != oldName {
		if err := s.meta.PutIfAbsent(ctx, nameIndexKey(realm, *name), []byte(depotID)); err != nil {
			return nil, casfaerr.ErrTargetExists.Withf("depot name %q already exists in realm %q", *name, realm)
		}
		d.Name = *name
	}
	if maxHistory != nil {
		d.MaxHistory = *maxHistory
		if len(d.History) > d.MaxHistory {
			d.History = d.History[:d.MaxHistory]
		}
	}
	d.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(d)
	if err != nil {
		return nil, casfaerr.ErrInternal.Withf("failed to marshal depot: %v", err)
	}
	if err := s.meta.PutIfMatch(ctx, depotKey(realm, depotID), raw, before); err != nil {
		return nil, casfaerr.ErrConcurrentReq.Withf("concurrent update of depot %q", depotID)
	}
	if name != nil && *name != oldName {
		_ = s.meta.Delete(ctx, nameIndexKey(realm, oldName))
	}
	return d, nil
}

// Delete removes a depot. Underlying CAS nodes remain reachable via other
// references until their realm refcount drops to zero; that GC is outside
// this package (spec.md §3 "Lifecycles").
func (s *Store) Delete(ctx context.Context, realm, depotID string) error {
	d, err := s.Get(ctx, realm, depotID)
	if err != nil {
		return err
	}
	if err := s.meta.Delete(ctx, depotKey(realm, depotID)); err != nil {
		return err
	}
	return s.meta.Delete(ctx, nameIndexKey(realm, d.Name))
}

func prependHistory(history []HistoryEntry, entry HistoryEntry, maxHistory int) []HistoryEntry {
	deduped := make([]HistoryEntry, 0, len(history)+1)
	deduped = append(deduped, entry)
	for _, h := range history {
		if h.Root == entry.Root {
			continue
		}
		deduped = append(deduped, h)
	}
	if maxHistory > 0 && len(deduped) > maxHistory {
		deduped = deduped[:maxHistory]
	}
	return deduped
}

func keyHex(k codec.Key) string {
	return fmt.Sprintf("%x", k)
}
