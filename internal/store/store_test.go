package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func hexIDs(ids []CommitID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

func buildWithIDs(t *testing.T, hexes ...string) *Snapshot {
	t.Helper()
	b := NewBuilder(4)
	for _, h := range hexes {
		if err := b.Add(&Commit{ID: MustCommitIDFromHex(h), Parents: []CommitID{b.Root()}}); err != nil {
			t.Fatalf("adding commit %s: %v", h, err)
		}
	}
	snap, err := b.Build()
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}
	return snap
}

func TestCommitID_Hex(t *testing.T) {
	id := MustCommitIDFromHex("0454de3c")
	if id.Hex() != "0454de3c" {
		t.Errorf("expected 0454de3c, got %s", id.Hex())
	}
	if id.Short(3) != "045" {
		t.Errorf("expected 045, got %s", id.Short(3))
	}
	if id.Len() != 4 {
		t.Errorf("expected width 4, got %d", id.Len())
	}
	if _, err := CommitIDFromHex("xyz"); err == nil {
		t.Error("expected error for non-hex id")
	}
	root := RootCommitID(2)
	if root.IsZero() || root.Hex() != "0000" {
		t.Errorf("unexpected root id %q", root.Hex())
	}
}

func TestCommitIDsWithPrefix(t *testing.T) {
	snap := buildWithIDs(t, "0468f7da", "0454de3c", "045f56cd", "a0000000")

	tests := []struct {
		prefix string
		limit  int
		want   []string
	}{
		{"04", 0, []string{"0454de3c", "045f56cd", "0468f7da"}},
		{"045", 0, []string{"0454de3c", "045f56cd"}},
		{"046", 0, []string{"0468f7da"}},
		{"040", 0, nil},
		{"b", 0, nil},
		{"a0000000", 0, []string{"a0000000"}},
		{"", 2, []string{"00000000", "0454de3c"}},
		{"04", 1, []string{"0454de3c"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.prefix, tt.limit), func(t *testing.T) {
			got := snap.CommitIDsWithPrefix(tt.prefix, tt.limit)
			var gotHex []string
			if got != nil {
				gotHex = hexIDs(got)
			}
			if diff := cmp.Diff(tt.want, gotHex); diff != "" {
				t.Errorf("prefix %q (-want +got):\n%s", tt.prefix, diff)
			}
		})
	}
}

func TestSnapshot_GetCommitNotFound(t *testing.T) {
	snap := buildWithIDs(t)
	_, err := snap.GetCommit(MustCommitIDFromHex("deadbeef"))
	if !errors.Is(err, ErrCommitNotFound) {
		t.Fatalf("expected ErrCommitNotFound, got %v", err)
	}
	var notFound *CommitNotFoundError
	if !errors.As(err, &notFound) || notFound.ID.Hex() != "deadbeef" {
		t.Errorf("expected CommitNotFoundError for deadbeef, got %v", err)
	}
}

func TestSnapshot_RootIsDefaultCheckout(t *testing.T) {
	snap := buildWithIDs(t, "11111111")
	if snap.Checkout() != snap.RootCommit().ID {
		t.Errorf("expected checkout at root, got %s", snap.Checkout())
	}
	if len(snap.RootCommit().Parents) != 0 {
		t.Error("root commit should have no parents")
	}
	if snap.Len() != 2 {
		t.Errorf("expected 2 commits, got %d", snap.Len())
	}
}

func TestBuilder_RejectsUnknownCheckout(t *testing.T) {
	b := NewBuilder(4)
	b.SetCheckout(MustCommitIDFromHex("12345678"))
	if _, err := b.Build(); !errors.Is(err, ErrCommitNotFound) {
		t.Fatalf("expected ErrCommitNotFound, got %v", err)
	}
}

func TestBuilder_RejectsWrongWidth(t *testing.T) {
	b := NewBuilder(4)
	if err := b.Add(&Commit{ID: MustCommitIDFromHex("12")}); err == nil {
		t.Fatal("expected width error")
	}
}

func TestSnapshot_CopyOnWrite(t *testing.T) {
	snap := buildWithIDs(t, "11111111", "22222222")
	c1 := MustCommitIDFromHex("11111111")

	moved, err := snap.WithCheckout(c1)
	if err != nil {
		t.Fatalf("moving checkout: %v", err)
	}
	if snap.Checkout() == c1 {
		t.Error("original snapshot should keep its checkout")
	}
	if moved.Checkout() != c1 {
		t.Errorf("expected checkout %s, got %s", c1, moved.Checkout())
	}

	withRef := moved.WithRef("refs/heads/main", c1)
	if _, ok := moved.Ref("refs/heads/main"); ok {
		t.Error("original snapshot should not see the new ref")
	}
	if got, ok := withRef.Ref("refs/heads/main"); !ok || got != c1 {
		t.Errorf("expected ref at %s, got %s (%v)", c1, got, ok)
	}

	if _, err := snap.WithCheckout(MustCommitIDFromHex("33333333")); !errors.Is(err, ErrCommitNotFound) {
		t.Errorf("expected ErrCommitNotFound, got %v", err)
	}
}

func TestSnapshot_ConcurrentReads(t *testing.T) {
	snap := buildWithIDs(t, "0454de3c", "045f56cd", "0468f7da")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := snap.CommitIDsWithPrefix("04", 0); len(got) != 3 {
					t.Errorf("expected 3 matches, got %d", len(got))
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestNewCommit_ContentAddressed(t *testing.T) {
	root := RootCommitID(32)
	a, err := NewCommit([]CommitID{root}, "one", "tester", 1)
	if err != nil {
		t.Fatalf("creating commit: %v", err)
	}
	b, _ := NewCommit([]CommitID{root}, "one", "tester", 1)
	c, _ := NewCommit([]CommitID{root}, "two", "tester", 1)
	if a.ID != b.ID {
		t.Error("equal content should give equal ids")
	}
	if a.ID == c.ID {
		t.Error("different content should give different ids")
	}
	if a.ID.Len() != 32 {
		t.Errorf("expected 32-byte id, got %d", a.ID.Len())
	}
}
