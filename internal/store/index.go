package store

import (
	"sort"
	"strings"
)

// prefixIndex is a sorted list of commit ids keyed by hex form. Lookups are a
// binary search for the first candidate followed by a scan of the matches.
type prefixIndex struct {
	hexes []string
	ids   []CommitID
}

func newPrefixIndex(ids []CommitID) *prefixIndex {
	idx := &prefixIndex{
		hexes: make([]string, len(ids)),
		ids:   make([]CommitID, len(ids)),
	}
	copy(idx.ids, ids)
	sort.Slice(idx.ids, func(i, j int) bool {
		return idx.ids[i].raw < idx.ids[j].raw
	})
	// Byte order and hex order agree, so hexes is sorted too.
	for i, id := range idx.ids {
		idx.hexes[i] = id.Hex()
	}
	return idx
}

func (x *prefixIndex) lookup(prefix string, limit int) []CommitID {
	i := sort.SearchStrings(x.hexes, prefix)
	var out []CommitID
	for ; i < len(x.hexes) && strings.HasPrefix(x.hexes[i], prefix); i++ {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, x.ids[i])
	}
	return out
}

func (x *prefixIndex) len() int {
	return len(x.ids)
}
