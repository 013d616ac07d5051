// Package gitio loads the commit graph and refs of a Git repository using go-git.
package gitio

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"revq/internal/store"
)

// IDSize is the width of a Git (SHA-1) commit id in bytes.
const IDSize = 20

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens an existing Git repository. path may be the work tree, any
// directory below it, or the .git directory itself.
func Open(repoPath string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return &Repository{repo: repo, path: repoPath}, nil
}

// Path returns the path the repository was opened from.
func (r *Repository) Path() string {
	return r.path
}

// Load reads every commit and ref into a snapshot.
//
// Commits without Git parents become children of the root commit, so every
// commit reaches the root. Annotated tags are peeled to the commit they point
// at; refs to anything else are skipped. The checkout is the commit at HEAD,
// or the root commit when HEAD is unborn.
func (r *Repository) Load() (*store.Snapshot, error) {
	b := store.NewBuilder(IDSize)

	iter, err := r.repo.CommitObjects()
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	err = iter.ForEach(func(c *object.Commit) error {
		return b.Add(convertCommit(c, b.Root()))
	})
	if err != nil {
		return nil, fmt.Errorf("reading commits: %w", err)
	}

	refs, err := r.repo.References()
	if err != nil {
		return nil, fmt.Errorf("listing refs: %w", err)
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference || ref.Name() == plumbing.HEAD {
			return nil
		}
		id, ok, err := r.peel(ref.Hash())
		if err != nil {
			return fmt.Errorf("peeling %s: %w", ref.Name(), err)
		}
		if !ok {
			log.Printf("gitio: skipping %s, not a commit", ref.Name())
			return nil
		}
		b.SetRef(ref.Name().String(), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading refs: %w", err)
	}

	head, err := r.repo.Head()
	switch {
	case err == nil:
		id, ok, err := r.peel(head.Hash())
		if err != nil {
			return nil, fmt.Errorf("reading HEAD: %w", err)
		}
		if ok {
			b.SetCheckout(id)
		}
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// unborn HEAD
	default:
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}

	snap, err := b.Build()
	if err != nil {
		return nil, err
	}
	log.Printf("gitio: loaded %d commits, %d refs from %s", snap.Len()-1, len(snap.RefNames()), r.path)
	return snap, nil
}

// peel resolves a hash or annotated tag to a commit. ok is false when the
// object is not a commit, such as a tag of a tree or of another tag.
func (r *Repository) peel(hash plumbing.Hash) (store.CommitID, bool, error) {
	tag, err := r.repo.TagObject(hash)
	switch {
	case err == nil:
		c, err := tag.Commit()
		if errors.Is(err, object.ErrUnsupportedObject) {
			return store.CommitID{}, false, nil
		}
		if err != nil {
			return store.CommitID{}, false, err
		}
		return commitID(c.Hash), true, nil
	case !errors.Is(err, plumbing.ErrObjectNotFound):
		return store.CommitID{}, false, err
	}

	if _, err := r.repo.CommitObject(hash); err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return store.CommitID{}, false, nil
		}
		return store.CommitID{}, false, err
	}
	return commitID(hash), true, nil
}

func convertCommit(c *object.Commit, root store.CommitID) *store.Commit {
	parents := make([]store.CommitID, 0, len(c.ParentHashes))
	for _, h := range c.ParentHashes {
		parents = append(parents, commitID(h))
	}
	if len(parents) == 0 {
		parents = append(parents, root)
	}
	return &store.Commit{
		ID:          commitID(c.Hash),
		Parents:     parents,
		Description: c.Message,
		Author:      c.Author.Name,
		Timestamp:   c.Author.When.UnixMilli(),
	}
}

func commitID(h plumbing.Hash) store.CommitID {
	return store.NewCommitID(h[:])
}
