// Package delegate is the authorization principal shared by ownership,
// scope, authz, and claim: a hierarchical token tree where each child's
// capabilities are a subset of its parent's (spec.md §3 "Delegate").
// Grounded on the teacher's FileInfo struct-with-json-tags style (fs.go)
// for the record shape, generalized from file metadata to an auth
// principal with chain/capability/scope invariants.
package delegate

import (
	"time"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
)

// CheckActive reports whether d may currently act as an authorization
// principal: revoked delegates retain their records for audit but fail all
// authorization, and an access token past its expiry fails too (spec.md §3
// "Lifecycles"). A root delegate's own revocation is reported distinctly
// (ROOT_DELEGATE_REVOKED) from a non-root delegate's (DELEGATE_REVOKED) so
// callers can tell a whole realm went dark from an ordinary revocation.
func CheckActive(d *Delegate) error {
	if d.IsRevoked {
		if d.IsRootDelegate() {
			return casfaerr.ErrRootDelegateRevoked.Withf("root delegate %q is revoked", d.ID)
		}
		return casfaerr.ErrDelegateRevoked.Withf("delegate %q is revoked", d.ID)
	}
	if !d.ATExpiresAt.IsZero() && time.Now().After(d.ATExpiresAt) {
		return casfaerr.ErrDelegateExpired.Withf("delegate %q access token expired at %s", d.ID, d.ATExpiresAt)
	}
	return nil
}

// Delegate is one node in a realm's delegate tree.
type Delegate struct {
	ID       string   `json:"id"`
	Realm    string   `json:"realm"`
	ParentID string   `json:"parentId,omitempty"`
	Chain    []string `json:"chain"` // [root, ..., self]

	CanUpload      bool `json:"canUpload"`
	CanManageDepot bool `json:"canManageDepot"`

	// Scope binding is mutually exclusive; a root delegate may have
	// neither, meaning unrestricted access within its realm.
	ScopeNodeHash  *codec.Key `json:"scopeNodeHash,omitempty"`
	ScopeSetNodeID *codec.Key `json:"scopeSetNodeId,omitempty"`

	CurrentATHash []byte    `json:"currentAtHash,omitempty"`
	CurrentRTHash []byte    `json:"currentRtHash,omitempty"`
	ATExpiresAt   time.Time `json:"atExpiresAt,omitempty"`

	IsRevoked bool `json:"isRevoked"`
}

// Depth is len(chain)-1, per spec.md §3.
func (d *Delegate) Depth() int { return len(d.Chain) - 1 }

// IsRootDelegate reports whether d has no parent (depth 0).
func (d *Delegate) IsRootDelegate() bool { return d.Depth() == 0 }

// HasScope reports whether d's access is restricted to a scope subtree
// rather than unrestricted within its realm.
func (d *Delegate) HasScope() bool {
	return d.ScopeNodeHash != nil || d.ScopeSetNodeID != nil
}

const maxChainLength = 16

// ValidateChain checks the chain invariants from spec.md §3: chain[depth]
// == id, length in [1,16]. It does not check ancestor existence/revocation
// — that requires a Store lookup and is the caller's responsibility at
// creation time.
func ValidateChain(id string, chain []string) error {
	if len(chain) < 1 || len(chain) > maxChainLength {
		return casfaerr.ErrDelegateNotFound.Withf("chain length %d out of range [1,%d]", len(chain), maxChainLength)
	}
	if chain[len(chain)-1] != id {
		return casfaerr.ErrDelegateNotFound.Withf("chain does not terminate at delegate %q", id)
	}
	return nil
}

// CapabilitiesSubset reports whether child's capabilities are all implied
// by parent's (spec.md §3 "each child's capability set ⊆ parent's").
func CapabilitiesSubset(parent, child *Delegate) bool {
	if child.CanUpload && !parent.CanUpload {
		return false
	}
	if child.CanManageDepot && !parent.CanManageDepot {
		return false
	}
	return true
}
