// Package store defines the read-only commit graph accessors consumed by the
// revset engine, and Snapshot, an immutable in-memory implementation of them.
package store

import (
	"errors"
	"fmt"

	"revq/internal/util"
)

// Commit is an immutable commit record. Parents are in authorship order
// (first parent first). Commits are shared by pointer and must not be modified.
type Commit struct {
	ID          CommitID
	Parents     []CommitID
	Description string
	Author      string
	Timestamp   int64 // milliseconds since epoch
}

// NewCommit builds a native commit whose id is the BLAKE3 hash of its content.
func NewCommit(parents []CommitID, description, author string, timestamp int64) (*Commit, error) {
	parentHex := make([]string, len(parents))
	for i, p := range parents {
		parentHex[i] = p.Hex()
	}
	payload := map[string]interface{}{
		"parents":     parentHex,
		"description": description,
		"author":      author,
		"timestamp":   timestamp,
	}
	id, err := util.ContentID("Commit", payload)
	if err != nil {
		return nil, fmt.Errorf("computing commit id: %w", err)
	}
	return &Commit{
		ID:          NewCommitID(id),
		Parents:     append([]CommitID(nil), parents...),
		Description: description,
		Author:      author,
		Timestamp:   timestamp,
	}, nil
}

// Store gives access to commits by id.
type Store interface {
	// GetCommit returns the commit with the given id, or a
	// *CommitNotFoundError if the store doesn't have it.
	GetCommit(id CommitID) (*Commit, error)
	// RootCommit returns the parentless sentinel commit.
	RootCommit() *Commit
	// CommitIDsWithPrefix returns ids whose hex form starts with prefix, in
	// ascending order. At most limit ids are returned; limit <= 0 means all.
	CommitIDsWithPrefix(prefix string, limit int) []CommitID
}

// View is the snapshot of the checkout pointer and the ref table.
type View interface {
	Checkout() CommitID
	// Ref looks up a ref by its exact full name.
	Ref(name string) (CommitID, bool)
}

// ErrCommitNotFound is matched by every *CommitNotFoundError.
var ErrCommitNotFound = errors.New("commit not found")

// CommitNotFoundError indicates the store has no commit with the id. When the
// id came from a parent pointer or ref, this means the repository is corrupt.
type CommitNotFoundError struct {
	ID CommitID
}

func (e *CommitNotFoundError) Error() string {
	return fmt.Sprintf("commit not found: %s", e.ID.Hex())
}

// Is makes errors.Is(err, ErrCommitNotFound) work.
func (e *CommitNotFoundError) Is(target error) bool {
	return target == ErrCommitNotFound
}
