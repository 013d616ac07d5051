package revset

import (
	"errors"
	"strings"
	"testing"

	"revq/internal/store"
)

func TestResolveSymbol_Root(t *testing.T) {
	repo := newTestRepo(t)
	snap := repo.snapshot()

	got, err := Resolve(snap, snap, "root")
	if err != nil {
		t.Fatalf("resolving root: %v", err)
	}
	if got != snap.RootCommit() {
		t.Errorf("expected root commit, got %s", got.ID)
	}
}

func TestResolveSymbol_CommitID(t *testing.T) {
	b := store.NewBuilder(20)
	hexIDs := []string{
		"0454de3cae04c46cda37ba2e8873b4c17ff51dcb",
		"045f56cd1b17e8abde86771e2705395dcde6a957",
		"0468f7da8de2ce442f512aacf83411d26cd2e0cf",
	}
	var commits []*store.Commit
	for _, h := range hexIDs {
		c := &store.Commit{ID: store.MustCommitIDFromHex(h), Parents: []store.CommitID{b.Root()}}
		if err := b.Add(c); err != nil {
			t.Fatalf("adding commit: %v", err)
		}
		commits = append(commits, c)
	}
	snap, err := b.Build()
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}

	// Full ids
	for i, h := range hexIDs {
		got, err := Resolve(snap, snap, h)
		if err != nil {
			t.Fatalf("resolving %s: %v", h, err)
		}
		if got != commits[i] {
			t.Errorf("resolving %s: got %s", h, got.ID)
		}
	}

	// Unique prefix
	got, err := Resolve(snap, snap, "046")
	if err != nil {
		t.Fatalf("resolving 046: %v", err)
	}
	if got != commits[2] {
		t.Errorf("expected %s, got %s", hexIDs[2], got.ID)
	}

	// Ambiguous prefixes, including the empty prefix
	for _, prefix := range []string{"04", ""} {
		_, err := Resolve(snap, snap, prefix)
		var ambiguous *AmbiguousCommitIDPrefixError
		if !errors.As(err, &ambiguous) {
			t.Fatalf("resolving %q: expected ambiguity error, got %v", prefix, err)
		}
		if ambiguous.Prefix != prefix {
			t.Errorf("expected prefix %q in error, got %q", prefix, ambiguous.Prefix)
		}
	}

	// Hex without matches falls through to refs and then fails
	for _, symbol := range []string{"040", "foo"} {
		_, err := Resolve(snap, snap, symbol)
		var noSuch *NoSuchRevisionError
		if !errors.As(err, &noSuch) || noSuch.Symbol != symbol {
			t.Errorf("resolving %q: expected NoSuchRevisionError, got %v", symbol, err)
		}
	}
}

func TestResolveSymbol_AmbiguousCandidatesAreCapped(t *testing.T) {
	repo := newTestRepo(t)
	for i := 0; i < 20; i++ {
		repo.commit()
	}
	snap := repo.snapshot()

	_, err := Resolve(snap, snap, "")
	var ambiguous *AmbiguousCommitIDPrefixError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected ambiguity error, got %v", err)
	}
	if len(ambiguous.Candidates) != maxCandidates {
		t.Errorf("expected %d candidates, got %d", maxCandidates, len(ambiguous.Candidates))
	}
	if !strings.Contains(err.Error(), "provide more characters") {
		t.Errorf("expected hint in message, got %q", err.Error())
	}
}

func TestResolveSymbol_EmptyPrefixWithOnlyRoot(t *testing.T) {
	snap := newTestRepo(t).snapshot()
	got, err := Resolve(snap, snap, "")
	if err != nil {
		t.Fatalf("resolving empty prefix: %v", err)
	}
	if got.ID != snap.RootCommit().ID {
		t.Errorf("expected root, got %s", got.ID)
	}
}

func TestResolveSymbol_Checkout(t *testing.T) {
	repo := newTestRepo(t)
	commit1 := repo.commit()
	commit2 := repo.commit()
	snap := repo.snapshot()

	snap = withCheckout(t, snap, commit1)
	got, err := Resolve(snap, snap, "@")
	if err != nil {
		t.Fatalf("resolving @: %v", err)
	}
	if got.ID != commit1 {
		t.Errorf("expected %s, got %s", commit1, got.ID)
	}

	snap = withCheckout(t, snap, commit2)
	got, err = Resolve(snap, snap, "@")
	if err != nil {
		t.Fatalf("resolving @: %v", err)
	}
	if got.ID != commit2 {
		t.Errorf("expected %s, got %s", commit2, got.ID)
	}
}

func TestResolveSymbol_GitRefs(t *testing.T) {
	repo := newTestRepo(t)
	commit1 := repo.commit()
	commit2 := repo.commit()
	commit3 := repo.commit()
	commit4 := repo.commit()
	commit5 := repo.commit()
	snap := repo.snapshot()
	snap = snap.WithRef("refs/heads/branch1", commit1)
	snap = snap.WithRef("refs/heads/branch2", commit2)
	snap = snap.WithRef("refs/tags/tag1", commit2)
	snap = snap.WithRef("refs/tags/remotes/origin/branch1", commit3)

	mustResolve := func(symbol string) store.CommitID {
		t.Helper()
		c, err := Resolve(snap, snap, symbol)
		if err != nil {
			t.Fatalf("resolving %q: %v", symbol, err)
		}
		return c.ID
	}

	// Non-existent ref
	_, err := Resolve(snap, snap, "non-existent")
	var noSuch *NoSuchRevisionError
	if !errors.As(err, &noSuch) || noSuch.Symbol != "non-existent" {
		t.Errorf("expected NoSuchRevisionError, got %v", err)
	}

	// Full ref
	snap = snap.WithRef("refs/heads/branch", commit4)
	if got := mustResolve("refs/heads/branch"); got != commit4 {
		t.Errorf("full ref: expected %s, got %s", commit4, got)
	}

	// Qualified with only heads/
	snap = snap.WithRef("refs/heads/branch", commit5)
	snap = snap.WithRef("refs/tags/branch", commit4)
	if got := mustResolve("heads/branch"); got != commit5 {
		t.Errorf("heads/: expected %s, got %s", commit5, got)
	}
	if got := mustResolve("tags/branch"); got != commit4 {
		t.Errorf("tags/: expected %s, got %s", commit4, got)
	}

	// Unqualified branch name prefers the branch over the tag
	snap = snap.WithRef("refs/heads/branch", commit3)
	snap = snap.WithRef("refs/tags/branch", commit4)
	if got := mustResolve("branch"); got != commit3 {
		t.Errorf("branch: expected %s, got %s", commit3, got)
	}

	// Unqualified tag name
	snap = snap.WithRef("refs/tags/tag", commit4)
	if got := mustResolve("tag"); got != commit4 {
		t.Errorf("tag: expected %s, got %s", commit4, got)
	}

	// Unqualified remote-tracking branch name
	snap = snap.WithRef("refs/remotes/origin/remote-branch", commit2)
	if got := mustResolve("origin/remote-branch"); got != commit2 {
		t.Errorf("remote branch: expected %s, got %s", commit2, got)
	}

	// Cannot shadow checkout ("@") or root symbols
	snap = snap.WithRef("@", commit2)
	snap = snap.WithRef("root", commit3)
	if got := mustResolve("@"); got != snap.Checkout() {
		t.Errorf("@: expected checkout %s, got %s", snap.Checkout(), got)
	}
	if got := mustResolve("root"); got != snap.RootCommit().ID {
		t.Errorf("root: expected %s, got %s", snap.RootCommit().ID, got)
	}
}

func TestResolveSymbol_RemoteOnly(t *testing.T) {
	repo := newTestRepo(t)
	c2 := repo.commit()
	snap := repo.snapshot().WithRef("refs/remotes/origin/remote-branch", c2)

	got, err := Resolve(snap, snap, "origin/remote-branch")
	if err != nil {
		t.Fatalf("resolving remote branch: %v", err)
	}
	if got.ID != c2 {
		t.Errorf("expected %s, got %s", c2, got.ID)
	}
}

func TestResolveSymbol_HexFallsThroughToRef(t *testing.T) {
	repo := newTestRepo(t)
	c1 := repo.commit()
	snap := repo.snapshot()

	// Pick a hex name that no commit id starts with.
	name := "ffff"
	for _, candidate := range []string{"ffff", "eeee", "dddd", "cccc"} {
		if len(snap.CommitIDsWithPrefix(candidate, 1)) == 0 {
			name = candidate
			break
		}
	}
	snap = snap.WithRef("refs/heads/"+name, c1)

	got, err := Resolve(snap, snap, name)
	if err != nil {
		t.Fatalf("resolving %q: %v", name, err)
	}
	if got.ID != c1 {
		t.Errorf("expected %s, got %s", c1, got.ID)
	}
}

func TestResolveSymbol_HexPrefixWinsOverRef(t *testing.T) {
	repo := newTestRepo(t)
	c1 := repo.commit()
	c2 := repo.commit()
	prefix := c1.Hex()[:12]
	snap := repo.snapshot().WithRef("refs/heads/"+prefix, c2)

	got, err := Resolve(snap, snap, prefix)
	if err != nil {
		t.Fatalf("resolving %q: %v", prefix, err)
	}
	if got.ID != c1 {
		t.Errorf("expected commit %s, got %s", c1, got.ID)
	}
}

func TestResolveSymbol_UppercaseIsNotHex(t *testing.T) {
	repo := newTestRepo(t)
	c1 := repo.commit()
	snap := repo.snapshot()

	upper := strings.ToUpper(c1.Hex()[:8])
	_, err := Resolve(snap, snap, upper)
	var noSuch *NoSuchRevisionError
	if !errors.As(err, &noSuch) {
		t.Errorf("expected NoSuchRevisionError for %q, got %v", upper, err)
	}
}

func TestResolveSymbol_DanglingRefIsStorageFailure(t *testing.T) {
	repo := newTestRepo(t)
	snap := repo.snapshot()
	missing, err := store.NewCommit(nil, "never stored", "test", 0)
	if err != nil {
		t.Fatalf("building commit: %v", err)
	}
	snap = snap.WithRef("refs/heads/broken", missing.ID)

	_, err = Resolve(snap, snap, "broken")
	if !errors.Is(err, store.ErrCommitNotFound) {
		t.Fatalf("expected ErrCommitNotFound, got %v", err)
	}
	var noSuch *NoSuchRevisionError
	if errors.As(err, &noSuch) {
		t.Error("storage failure must not look like a missing revision")
	}
}
