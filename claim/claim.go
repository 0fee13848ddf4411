// Package claim implements the proof-of-possession protocol that lets a
// delegate acquire ownership of a node already present in the store
// without re-uploading its bytes (spec.md §4.10). Grounded on the
// teacher's checksum-verification step in layerfs/node.go (recomputing a
// hash to validate stored bytes), generalized from "verify content
// integrity" to "verify possession via a keyed hash".
package claim

import (
	"context"

	"lukechampine.com/blake3"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
	"github.com/shazhou-ww/casfa-sub002/casid"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/delegate"
	"github.com/shazhou-ww/casfa-sub002/nodestore"
	"github.com/shazhou-ww/casfa-sub002/ownership"
)

// Request is the input to Claim (spec.md §4.10).
type Request struct {
	Delegate        *delegate.Delegate
	IsAccessToken   bool
	NodeHash        codec.Key
	AccessTokenBytes []byte
	PoP             string // proof of possession, "req_"-prefixed base32 (casid.PrefixRequest)
}

// Result is the output of a successful Claim.
type Result struct {
	AlreadyOwned bool
}

// Service implements the claim protocol.
type Service struct {
	Store     nodestore.Store
	Ownership ownership.Index
}

// New builds a claim Service.
func New(store nodestore.Store, own ownership.Index) *Service {
	return &Service{Store: store, Ownership: own}
}

// Claim runs the protocol from spec.md §4.10.
func (s *Service) Claim(ctx context.Context, realm string, req Request) (Result, error) {
	if !req.IsAccessToken {
		return Result{}, casfaerr.ErrAccessTokenRequired
	}
	if !req.Delegate.CanUpload {
		return Result{}, casfaerr.ErrUploadNotAllowed
	}
	if req.Delegate.Realm != realm {
		return Result{}, casfaerr.ErrRealmMismatch
	}
	if err := delegate.CheckActive(req.Delegate); err != nil {
		return Result{}, err
	}

	already, err := s.Ownership.HasOwnership(ctx, req.NodeHash, req.Delegate.ID)
	if err != nil {
		return Result{}, err
	}
	if already {
		return Result{AlreadyOwned: true}, nil
	}

	content, err := s.Store.Get(ctx, req.NodeHash)
	if err != nil {
		return Result{}, casfaerr.ErrNodeNotFound.Withf("node %x: %v", req.NodeHash, err)
	}

	if err := verifyPoP(content, req.AccessTokenBytes, req.PoP); err != nil {
		return Result{}, err
	}

	node, err := codec.Decode(content)
	if err != nil {
		return Result{}, err
	}
	size := int64(len(content))
	if node.Kind == codec.KindFile {
		size = int64(node.FileInfo.FileSize)
	}

	if err := s.Ownership.AddOwnership(ctx, req.NodeHash, req.Delegate.Chain, req.Delegate.ID, "application/octet-stream", size, node.Kind); err != nil {
		return Result{}, err
	}
	return Result{AlreadyOwned: false}, nil
}

// verifyPoP checks pop against expected = "req_" + base32(blake3_128_keyed(
// content, key=blake3_256(accessTokenBytes))), built with casid.Encode and
// casid.PrefixRequest (spec.md §4.10 step 3).
func verifyPoP(content, accessTokenBytes []byte, pop string) error {
	keySum := blake3.Sum256(accessTokenBytes)
	h := blake3.New(16, keySum[:])
	h.Write(content)
	var expected [16]byte
	copy(expected[:], h.Sum(nil))

	if casid.Encode(casid.PrefixRequest, expected) != pop {
		return casfaerr.ErrInvalidPoP
	}
	return nil
}
