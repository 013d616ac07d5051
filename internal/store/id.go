package store

import (
	"fmt"

	"revq/internal/util"
)

// CommitID is the content hash identifying a commit. It is a comparable
// value and may be used as a map key. The zero value is not a valid id.
type CommitID struct {
	raw string
}

// NewCommitID wraps raw hash bytes.
func NewCommitID(b []byte) CommitID {
	return CommitID{raw: string(b)}
}

// CommitIDFromHex parses the hex form of a commit id.
func CommitIDFromHex(s string) (CommitID, error) {
	b, err := util.HexToBytes(s)
	if err != nil {
		return CommitID{}, fmt.Errorf("invalid commit id %q: %w", s, err)
	}
	if len(b) == 0 {
		return CommitID{}, fmt.Errorf("invalid commit id: empty")
	}
	return NewCommitID(b), nil
}

// MustCommitIDFromHex is like CommitIDFromHex but panics on error.
func MustCommitIDFromHex(s string) CommitID {
	id, err := CommitIDFromHex(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Bytes returns a copy of the raw hash bytes.
func (id CommitID) Bytes() []byte {
	return []byte(id.raw)
}

// Hex returns the lowercase hex form.
func (id CommitID) Hex() string {
	return util.BytesToHex([]byte(id.raw))
}

// Short returns the first n hex characters.
func (id CommitID) Short(n int) string {
	h := id.Hex()
	if n > 0 && n < len(h) {
		return h[:n]
	}
	return h
}

// Len returns the width of the id in bytes.
func (id CommitID) Len() int {
	return len(id.raw)
}

// IsZero reports whether id is the zero value.
func (id CommitID) IsZero() bool {
	return id.raw == ""
}

func (id CommitID) String() string {
	return id.Hex()
}

// RootCommitID returns the all-zero id of the given width.
func RootCommitID(width int) CommitID {
	return CommitID{raw: string(make([]byte, width))}
}
