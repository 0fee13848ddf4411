// Package authz implements the authorization gate consulted whenever a
// filesystem operation references an arbitrary node by key rather than by
// walking down from a root the caller already owns (spec.md §4.8): a
// {link} entry in rewrite, or cp of an external subtree. Composes
// ownership (full-chain O(1) positives) with scope (proof verification).
package authz

import (
	"context"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/delegate"
	"github.com/shazhou-ww/casfa-sub002/ownership"
	"github.com/shazhou-ww/casfa-sub002/scope"
)

// Gate evaluates link authorization in the strict order spec.md §4.8
// requires.
type Gate struct {
	Ownership ownership.Index
	Scope     *scope.Engine
}

// New builds a Gate.
func New(own ownership.Index, sc *scope.Engine) *Gate {
	return &Gate{Ownership: own, Scope: sc}
}

// Authorize decides whether d may reference linkKey, given an optional
// proof for that key (spec.md §4.8):
//  0. a revoked or expired delegate is denied outright, regardless of what
//     follows — revoked delegates fail all authorization (spec.md §3
//     "Lifecycles").
//  1. well-known nodes are always allowed.
//  2. any chain ancestor's ownership of linkKey allows it (root first).
//  3. a root delegate is allowed.
//  4. otherwise, a missing proof is MISSING_PROOF, a delegate without a
//     scope is LINK_NOT_AUTHORIZED, and a supplied proof is verified
//     against d's scope, whose error is returned as is.
//
// Priority short-circuits from §4.9 apply even when a proof was supplied
// but is malformed or fails: an ownership positive or root-delegate status
// authorizes the reference regardless, per "proof errors take precedence
// over missing-proof when a malformed proof is provided" read together
// with the §4.9 short-circuit list.
func (g *Gate) Authorize(ctx context.Context, d *delegate.Delegate, linkKey codec.Key, proof *scope.ProofWord) error {
	if err := delegate.CheckActive(d); err != nil {
		return err
	}

	if codec.IsWellKnown(linkKey) {
		return nil
	}

	if owner, ok, err := g.Ownership.HasOwnershipBatch(ctx, linkKey, d.Chain); err != nil {
		return err
	} else if ok {
		_ = owner
		return nil
	}

	if d.IsRootDelegate() {
		return nil
	}

	if proof == nil {
		return casfaerr.ErrMissingProof.Withf("no proof supplied for unowned node %x", linkKey)
	}
	if !d.HasScope() {
		return casfaerr.ErrLinkNotAuthorized.Withf("delegate %q has no scope to verify a proof against", d.ID)
	}

	if err := g.Scope.Verify(ctx, d, linkKey, *proof); err != nil {
		return err
	}
	return nil
}
