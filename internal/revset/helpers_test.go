package revset

import (
	"fmt"
	"testing"

	"revq/internal/store"
	"revq/internal/util"
)

// testRepo builds snapshots for tests. Commits get distinct content so their
// ids differ.
type testRepo struct {
	t *testing.T
	b *store.Builder
	n int
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	return &testRepo{t: t, b: store.NewBuilder(util.IDSize)}
}

func (r *testRepo) root() store.CommitID {
	return r.b.Root()
}

// commit adds a commit with the given parents in authorship order. With no
// parents the commit is a child of the root.
func (r *testRepo) commit(parents ...store.CommitID) store.CommitID {
	r.t.Helper()
	if len(parents) == 0 {
		parents = []store.CommitID{r.b.Root()}
	}
	r.n++
	c, err := store.NewCommit(parents, fmt.Sprintf("test %d", r.n), "test", int64(r.n))
	if err != nil {
		r.t.Fatalf("creating commit: %v", err)
	}
	if err := r.b.Add(c); err != nil {
		r.t.Fatalf("adding commit: %v", err)
	}
	return c.ID
}

func (r *testRepo) snapshot() *store.Snapshot {
	r.t.Helper()
	snap, err := r.b.Build()
	if err != nil {
		r.t.Fatalf("building snapshot: %v", err)
	}
	return snap
}

func withCheckout(t *testing.T, snap *store.Snapshot, id store.CommitID) *store.Snapshot {
	t.Helper()
	next, err := snap.WithCheckout(id)
	if err != nil {
		t.Fatalf("setting checkout: %v", err)
	}
	return next
}

// resolveCommitIDs parses and evaluates text, failing the test on error.
func resolveCommitIDs(t *testing.T, snap *store.Snapshot, text string) []store.CommitID {
	t.Helper()
	expr, err := Parse(text)
	if err != nil {
		t.Fatalf("parsing %q: %v", text, err)
	}
	ids, err := Evaluate(snap, snap, expr)
	if err != nil {
		t.Fatalf("evaluating %q: %v", text, err)
	}
	return ids
}

func hexes(ids []store.CommitID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
