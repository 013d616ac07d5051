package store

import (
	"fmt"
	"sort"
)

// Snapshot is an immutable, internally consistent view of a repository: its
// commits, the checkout pointer and the ref table. It implements both Store
// and View and is safe for concurrent use.
type Snapshot struct {
	width    int
	root     *Commit
	commits  map[CommitID]*Commit
	index    *prefixIndex
	checkout CommitID
	refs     map[string]CommitID
}

var (
	_ Store = (*Snapshot)(nil)
	_ View  = (*Snapshot)(nil)
)

// GetCommit implements Store.
func (s *Snapshot) GetCommit(id CommitID) (*Commit, error) {
	c, ok := s.commits[id]
	if !ok {
		return nil, &CommitNotFoundError{ID: id}
	}
	return c, nil
}

// RootCommit implements Store.
func (s *Snapshot) RootCommit() *Commit {
	return s.root
}

// CommitIDsWithPrefix implements Store.
func (s *Snapshot) CommitIDsWithPrefix(prefix string, limit int) []CommitID {
	return s.index.lookup(prefix, limit)
}

// Checkout implements View.
func (s *Snapshot) Checkout() CommitID {
	return s.checkout
}

// Ref implements View.
func (s *Snapshot) Ref(name string) (CommitID, bool) {
	id, ok := s.refs[name]
	return id, ok
}

// IDWidth returns the width in bytes of every commit id in the snapshot.
func (s *Snapshot) IDWidth() int {
	return s.width
}

// Len returns the number of commits, including the root.
func (s *Snapshot) Len() int {
	return s.index.len()
}

// Commits returns all commits ordered by id.
func (s *Snapshot) Commits() []*Commit {
	out := make([]*Commit, 0, len(s.index.ids))
	for _, id := range s.index.ids {
		out = append(out, s.commits[id])
	}
	return out
}

// RefNames returns all ref names in sorted order.
func (s *Snapshot) RefNames() []string {
	names := make([]string, 0, len(s.refs))
	for name := range s.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithCheckout returns a snapshot that shares all commits with s but has a
// different checkout.
func (s *Snapshot) WithCheckout(id CommitID) (*Snapshot, error) {
	if _, ok := s.commits[id]; !ok {
		return nil, fmt.Errorf("setting checkout: %w", &CommitNotFoundError{ID: id})
	}
	next := *s
	next.checkout = id
	return &next, nil
}

// WithRef returns a snapshot with the ref name pointing at id. The ref table
// is copied; commits and the prefix index are shared.
func (s *Snapshot) WithRef(name string, id CommitID) *Snapshot {
	next := *s
	next.refs = make(map[string]CommitID, len(s.refs)+1)
	for k, v := range s.refs {
		next.refs[k] = v
	}
	next.refs[name] = id
	return &next
}

// Builder accumulates commits and refs and produces a Snapshot.
type Builder struct {
	width    int
	root     *Commit
	commits  map[CommitID]*Commit
	order    []CommitID
	checkout CommitID
	refs     map[string]CommitID
}

// NewBuilder creates a builder for ids of the given width. The root commit is
// added automatically and is the default checkout.
func NewBuilder(width int) *Builder {
	root := &Commit{ID: RootCommitID(width)}
	b := &Builder{
		width:    width,
		root:     root,
		commits:  map[CommitID]*Commit{root.ID: root},
		order:    []CommitID{root.ID},
		checkout: root.ID,
		refs:     make(map[string]CommitID),
	}
	return b
}

// Root returns the id of the root commit.
func (b *Builder) Root() CommitID {
	return b.root.ID
}

// Width returns the id width in bytes.
func (b *Builder) Width() int {
	return b.width
}

// Add adds a commit. Adding a commit whose id is already present is a no-op.
// Parents are not required to exist.
func (b *Builder) Add(c *Commit) error {
	if c.ID.Len() != b.width {
		return fmt.Errorf("commit %s has width %d, expected %d", c.ID.Hex(), c.ID.Len(), b.width)
	}
	if _, ok := b.commits[c.ID]; ok {
		return nil
	}
	b.commits[c.ID] = c
	b.order = append(b.order, c.ID)
	return nil
}

// SetCheckout sets the checkout pointer.
func (b *Builder) SetCheckout(id CommitID) {
	b.checkout = id
}

// SetRef sets a ref.
func (b *Builder) SetRef(name string, id CommitID) {
	b.refs[name] = id
}

// Build returns the snapshot. It fails if the checkout is not a known commit.
// The builder must not be used afterwards.
func (b *Builder) Build() (*Snapshot, error) {
	if _, ok := b.commits[b.checkout]; !ok {
		return nil, fmt.Errorf("checkout %s: %w", b.checkout.Hex(), ErrCommitNotFound)
	}
	return &Snapshot{
		width:    b.width,
		root:     b.root,
		commits:  b.commits,
		index:    newPrefixIndex(b.order),
		checkout: b.checkout,
		refs:     b.refs,
	}, nil
}
