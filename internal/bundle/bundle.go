// Package bundle reads and writes snapshots as single zstd-compressed files.
package bundle

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"revq/internal/store"
	"revq/internal/util"
)

// Bundle format: zstd(canonical JSON of File). Commits are sorted by id and
// exclude the root commit, which every reader recreates from the width.

const (
	// Version is the bundle format version written by Write.
	Version = 1
	// MaxSize bounds the decompressed size accepted by Read.
	MaxSize = 256 * 1024 * 1024
)

// File is the decoded bundle document.
type File struct {
	Version  int               `json:"version"`
	Width    int               `json:"width"`
	Checkout string            `json:"checkout"`
	Refs     map[string]string `json:"refs"`
	Commits  []FileCommit      `json:"commits"`
}

// FileCommit is one commit in a bundle.
type FileCommit struct {
	ID          string   `json:"id"`
	Parents     []string `json:"parents"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty"`
}

// Encode converts a snapshot to its bundle document.
func Encode(snap *store.Snapshot) *File {
	f := &File{
		Version:  Version,
		Width:    snap.IDWidth(),
		Checkout: snap.Checkout().Hex(),
		Refs:     make(map[string]string),
		Commits:  []FileCommit{},
	}
	for _, name := range snap.RefNames() {
		id, _ := snap.Ref(name)
		f.Refs[name] = id.Hex()
	}
	root := snap.RootCommit().ID
	for _, c := range snap.Commits() {
		if c.ID == root {
			continue
		}
		parents := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			parents[i] = p.Hex()
		}
		f.Commits = append(f.Commits, FileCommit{
			ID:          c.ID.Hex(),
			Parents:     parents,
			Description: c.Description,
			Author:      c.Author,
			Timestamp:   c.Timestamp,
		})
	}
	return f
}

// Decode rebuilds a snapshot from a bundle document.
func Decode(f *File) (*store.Snapshot, error) {
	if f.Version != Version {
		return nil, fmt.Errorf("unsupported bundle version %d", f.Version)
	}
	if f.Width <= 0 {
		return nil, fmt.Errorf("invalid id width %d", f.Width)
	}

	b := store.NewBuilder(f.Width)
	for _, fc := range f.Commits {
		id, err := decodeID(b, fc.ID)
		if err != nil {
			return nil, err
		}
		parents := make([]store.CommitID, len(fc.Parents))
		for i, p := range fc.Parents {
			if parents[i], err = decodeID(b, p); err != nil {
				return nil, fmt.Errorf("commit %s parent: %w", fc.ID, err)
			}
		}
		c := &store.Commit{
			ID:          id,
			Parents:     parents,
			Description: fc.Description,
			Author:      fc.Author,
			Timestamp:   fc.Timestamp,
		}
		if err := b.Add(c); err != nil {
			return nil, err
		}
	}
	for name, target := range f.Refs {
		id, err := decodeID(b, target)
		if err != nil {
			return nil, fmt.Errorf("ref %s: %w", name, err)
		}
		b.SetRef(name, id)
	}
	checkout, err := decodeID(b, f.Checkout)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	b.SetCheckout(checkout)
	return b.Build()
}

// decodeID parses a hex id and checks it has the bundle's id width.
func decodeID(b *store.Builder, s string) (store.CommitID, error) {
	id, err := store.CommitIDFromHex(s)
	if err != nil {
		return store.CommitID{}, err
	}
	if id.Len() != b.Width() {
		return store.CommitID{}, fmt.Errorf("id %s has width %d, expected %d", s, id.Len(), b.Width())
	}
	return id, nil
}

// Write encodes snap and writes it compressed to w.
func Write(w io.Writer, snap *store.Snapshot) error {
	data, err := util.CanonicalJSON(Encode(snap))
	if err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}

	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return fmt.Errorf("compressing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("closing encoder: %w", err)
	}
	return nil
}

// Read decompresses a bundle from r and rebuilds its snapshot.
func Read(r io.Reader) (*store.Snapshot, error) {
	decoder, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(MaxSize))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	data, err := io.ReadAll(io.LimitReader(decoder, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("bundle too large: more than %d bytes", MaxSize)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing bundle: %w", err)
	}
	snap, err := Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("loading bundle: %w", err)
	}
	return snap, nil
}
