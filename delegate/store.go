package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/metastore"
)

// Store persists delegates and mediates the single mutation the spec
// allows after creation: token rotation under compare-and-set (spec.md §5
// "Per-delegate token state ... mutated only via a compare-and-set rotate
// operation keyed by the expected RT hash").
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

// NewStore wraps a metastore.Store as a delegate.Store.
func NewStore(meta metastore.Store, opts ...Option) *Store {
	s := &Store{meta: meta, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func recordKey(realm, id string) string {
	return fmt.Sprintf("delegate/%s/%s", realm, id)
}

// Get fetches a delegate by realm and id.
func (s *Store) Get(ctx context.Context, realm, id string) (*Delegate, error) {
	raw, err := s.meta.Get(ctx, recordKey(realm, id))
	if err != nil {
		if err == metastore.ErrNotFound {
			return nil, casfaerr.ErrDelegateNotFound.Withf("delegate %q not found in realm %q", id, realm)
		}
		return nil, err
	}
	var d Delegate
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, casfaerr.ErrInternal.Withf("corrupt delegate record %q: %v", id, err)
	}
	return &d, nil
}

// Create writes a brand-new delegate record; fails if one already exists
// under the same (realm, id). Every ancestor named in the chain (all but
// the last element, which is d itself) must already exist and be
// non-revoked (spec.md §3 "each element of chain references an existing,
// non-revoked delegate at delegate creation").
func (s *Store) Create(ctx context.Context, d *Delegate) error {
	if err := ValidateChain(d.ID, d.Chain); err != nil {
		return err
	}
	for _, ancestorID := range d.Chain[:len(d.Chain)-1] {
		ancestor, err := s.Get(ctx, d.Realm, ancestorID)
		if err != nil {
			return err
		}
		if ancestor.IsRevoked {
			return casfaerr.ErrDelegateRevoked.Withf("ancestor delegate %q is revoked", ancestorID)
		}
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return casfaerr.ErrInternal.Withf("failed to marshal delegate: %v", err)
	}
	if err := s.meta.PutIfAbsent(ctx, recordKey(d.Realm, d.ID), raw); err != nil {
		return casfaerr.ErrConcurrentReq.Withf("delegate %q already exists", d.ID)
	}
	return nil
}

// Revoke flips isRevoked; chain recording is never altered (spec.md §3
// "revoking a delegate does not alter its chain recording").
func (s *Store) Revoke(ctx context.Context, realm, id string) error {
	d, err := s.Get(ctx, realm, id)
	if err != nil {
		return err
	}
	if d.IsRevoked {
		return nil
	}
	s.log.Info("delegate revoked", zap.String("delegateId", id), zap.String("realm", realm))
	d.IsRevoked = true
	raw, err := json.Marshal(d)
	if err != nil {
		return casfaerr.ErrInternal.Withf("failed to marshal delegate: %v", err)
	}
	return s.meta.Put(ctx, recordKey(realm, id), raw)
}

// RotateTokens swaps a delegate's access/refresh token hashes under
// compare-and-set keyed by the expected current refresh-token hash
// (spec.md §5). Concurrent refreshes resolve with all but one failing
// TOKEN_INVALID. A revoked delegate can never rotate (DELEGATE_REVOKED /
// ROOT_DELEGATE_REVOKED), root delegates don't carry refresh tokens at all
// and are rejected outright (ROOT_REFRESH_NOT_ALLOWED), and presenting the
// current access-token hash in place of the refresh-token hash is reported
// distinctly (NOT_REFRESH_TOKEN) rather than as a bare mismatch.
func (s *Store) RotateTokens(ctx context.Context, realm, id string, expectedRTHash, newATHash, newRTHash []byte, atExpiresUnix int64) error {
	d, err := s.Get(ctx, realm, id)
	if err != nil {
		return err
	}
	if d.IsRevoked {
		s.log.Debug("token rotation rejected: delegate is revoked", zap.String("delegateId", id))
		return CheckActive(d)
	}
	if d.IsRootDelegate() {
		return casfaerr.ErrRootRefreshDenied.Withf("root delegate %q cannot rotate tokens", id)
	}
	if !bytesEqual(d.CurrentRTHash, expectedRTHash) {
		if len(expectedRTHash) > 0 && bytesEqual(d.CurrentATHash, expectedRTHash) {
			s.log.Debug("token rotation rejected: access token hash presented instead of refresh token", zap.String("delegateId", id))
			return casfaerr.ErrNotRefreshToken.Withf("hash presented for delegate %q is an access-token hash, not a refresh-token hash", id)
		}
		s.log.Debug("token rotation rejected: refresh token hash mismatch", zap.String("delegateId", id))
		return casfaerr.ErrTokenInvalid.Withf("refresh token hash mismatch for delegate %q", id)
	}

	key := recordKey(realm, id)
	before, err := s.meta.Get(ctx, key)
	if err != nil {
		return err
	}

	updated := *d
	updated.CurrentATHash = newATHash
	updated.CurrentRTHash = newRTHash
	updated.ATExpiresAt = time.Unix(atExpiresUnix, 0).UTC()
	raw, err := json.Marshal(&updated)
	if err != nil {
		return casfaerr.ErrInternal.Withf("failed to marshal delegate: %v", err)
	}

	if err := s.meta.PutIfMatch(ctx, key, raw, before); err != nil {
		return casfaerr.ErrConcurrentReq.Withf("concurrent token rotation for delegate %q", id)
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
