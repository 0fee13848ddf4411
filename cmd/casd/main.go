// Command casd is the minimal composition-root binary: it opens a Stack
// against a bolt file, bootstraps a root delegate and a root depot on
// first run, and reports the resulting realm/delegate/depot ids. It does
// not serve HTTP (spec.md §6 "with no HTTP server") — casd is the part a
// transport layer would sit in front of.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/shazhou-ww/casfa-sub002/casid"
	"github.com/shazhou-ww/casfa-sub002/codec"
	"github.com/shazhou-ww/casfa-sub002/config"
	"github.com/shazhou-ww/casfa-sub002/delegate"
	"github.com/shazhou-ww/casfa-sub002/stack"
)

func main() {
	boltPath := flag.String("db", "casfa.db", "path to the embedded bolt database")
	realm := flag.String("realm", "default", "realm to bootstrap a root delegate and depot in")
	depotName := flag.String("depot", "root", "name of the depot to bootstrap under the realm")
	verified := flag.Bool("verified-puts", false, "recompute and check content keys on every node store put")
	cacheCap := flag.Int("ownership-cache", 100_000, "ownership cache entry capacity")
	maxHistory := flag.Int("depot-history", 32, "default per-depot history length")
	createChildOf := flag.String("create-child", "", "mint a new non-root delegate as a child of this delegate id and print its id")
	childCanUpload := flag.Bool("child-can-upload", false, "grant the minted child delegate upload capability")
	childCanManageDepot := flag.Bool("child-can-manage-depot", false, "grant the minted child delegate depot-management capability")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "casd: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	opts := []config.Option{
		config.WithBoltPath(*boltPath),
		config.WithOwnershipCacheCapacity(*cacheCap),
		config.WithDefaultMaxHistory(*maxHistory),
		config.WithLogger(logger),
	}
	if *verified {
		opts = append(opts, config.WithVerifiedPuts())
	}
	cfg := config.New(opts...)

	st, err := stack.New(cfg)
	if err != nil {
		logger.Fatal("failed to build stack", zap.Error(err))
	}
	defer st.Close()

	ctx := context.Background()

	root, err := bootstrapRootDelegate(ctx, st, *realm)
	if err != nil {
		logger.Fatal("failed to bootstrap root delegate", zap.Error(err))
	}

	dep, err := st.Depots.GetByName(ctx, *realm, *depotName)
	if err != nil {
		dep, err = st.Depots.Create(ctx, *realm, *depotName, codec.EmptyDictKey, cfg.DefaultMaxHistory, root.ID, "")
		if err != nil {
			logger.Fatal("failed to bootstrap root depot", zap.Error(err))
		}
	}

	logger.Info("casd ready",
		zap.String("realm", *realm),
		zap.String("rootDelegateId", root.ID),
		zap.String("depotId", dep.DepotID),
		zap.String("depotName", dep.Name),
	)

	if *createChildOf != "" {
		child, err := mintChildDelegate(ctx, st, *realm, *createChildOf, *childCanUpload, *childCanManageDepot)
		if err != nil {
			logger.Fatal("failed to mint child delegate", zap.Error(err))
		}
		logger.Info("child delegate minted",
			zap.String("realm", *realm),
			zap.String("parentId", *createChildOf),
			zap.String("childId", child.ID),
			zap.Int("depth", child.Depth()),
		)
	}
}

// mintChildDelegate grows the realm's delegate tree by one node: it loads
// parentID's record, generates an unguessable id, and creates a child whose
// chain is the parent's chain plus that id (spec.md §3 "each element of
// chain references an existing, non-revoked delegate at delegate creation").
// Store.Create enforces the ancestor-existence/non-revoked invariant itself;
// this function additionally refuses to escalate capabilities beyond the
// parent's own (spec.md §3 "each child's capability set ⊆ parent's").
func mintChildDelegate(ctx context.Context, st *stack.Stack, realm, parentID string, canUpload, canManageDepot bool) (*delegate.Delegate, error) {
	parent, err := st.Delegates.Get(ctx, realm, parentID)
	if err != nil {
		return nil, fmt.Errorf("casd: parent delegate %q: %w", parentID, err)
	}

	var raw16 [16]byte
	if _, err := rand.Read(raw16[:]); err != nil {
		return nil, fmt.Errorf("casd: failed to generate child delegate id: %w", err)
	}
	childID := casid.Encode(casid.PrefixDelegate, raw16)

	child := &delegate.Delegate{
		ID:             childID,
		Realm:          realm,
		ParentID:       parent.ID,
		Chain:          append(append([]string{}, parent.Chain...), childID),
		CanUpload:      canUpload,
		CanManageDepot: canManageDepot,
	}
	if !delegate.CapabilitiesSubset(parent, child) {
		return nil, fmt.Errorf("casd: requested capabilities exceed parent delegate %q's own", parentID)
	}
	if err := st.Delegates.Create(ctx, child); err != nil {
		return nil, err
	}
	return child, nil
}

// bootstrapRootDelegate returns the realm's existing root delegate, or
// creates one with the fixed id "root" and full capabilities if the realm
// has never been initialized.
func bootstrapRootDelegate(ctx context.Context, st *stack.Stack, realm string) (*delegate.Delegate, error) {
	const wellKnownRootID = "root"

	if d, err := st.Delegates.Get(ctx, realm, wellKnownRootID); err == nil {
		return d, nil
	}

	d := &delegate.Delegate{
		ID:             wellKnownRootID,
		Realm:          realm,
		Chain:          []string{wellKnownRootID},
		CanUpload:      true,
		CanManageDepot: true,
	}
	if err := st.Delegates.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}
