package revset

import (
	"fmt"
	"strings"

	"revq/internal/ref"
	"revq/internal/store"
	"revq/internal/util"
)

const (
	// CheckoutSymbol names the checked-out commit.
	CheckoutSymbol = "@"
	// RootSymbol names the root commit.
	RootSymbol = "root"
)

// maxCandidates is how many ambiguous ids are reported in an error.
const maxCandidates = 10

// NoSuchRevisionError indicates a symbol matched no commit or ref.
type NoSuchRevisionError struct {
	Symbol string
}

func (e *NoSuchRevisionError) Error() string {
	return fmt.Sprintf("revision %q doesn't exist", e.Symbol)
}

// AmbiguousCommitIDPrefixError indicates a hex prefix matched more than one commit.
type AmbiguousCommitIDPrefixError struct {
	Prefix     string
	Candidates []store.CommitID // at most maxCandidates
}

func (e *AmbiguousCommitIDPrefixError) Error() string {
	var parts []string
	for _, c := range e.Candidates {
		parts = append(parts, c.Short(12))
	}
	return fmt.Sprintf("commit id prefix %q is ambiguous, it matches:\n  %s\nprovide more characters",
		e.Prefix, strings.Join(parts, "\n  "))
}

// Resolve turns a symbol into a commit. Rules are tried in order and the
// first that matches decides the result:
//  1. "@" is the checkout, even if a ref named "@" exists
//  2. "root" is the root commit, even if a ref named "root" exists
//  3. a lowercase hex string is a commit id prefix; a unique match wins, two
//     or more matches fail, no match falls through
//  4. ref names, see ref.Candidates
//
// Anything else fails with *NoSuchRevisionError.
func Resolve(view store.View, st store.Store, symbol string) (*store.Commit, error) {
	switch symbol {
	case CheckoutSymbol:
		return getCommit(st, view.Checkout())
	case RootSymbol:
		return st.RootCommit(), nil
	}

	if util.IsLowerHex(symbol) {
		matches := st.CommitIDsWithPrefix(symbol, maxCandidates+1)
		switch {
		case len(matches) == 1:
			return getCommit(st, matches[0])
		case len(matches) > 1:
			if len(matches) > maxCandidates {
				matches = matches[:maxCandidates]
			}
			return nil, &AmbiguousCommitIDPrefixError{Prefix: symbol, Candidates: matches}
		}
	}

	for _, name := range ref.Candidates(symbol) {
		if id, ok := view.Ref(name); ok {
			return getCommit(st, id)
		}
	}

	return nil, &NoSuchRevisionError{Symbol: symbol}
}

// getCommit loads a commit some pointer claims exists. A miss here is a
// storage integrity failure, not a user error.
func getCommit(st store.Store, id store.CommitID) (*store.Commit, error) {
	c, err := st.GetCommit(id)
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", id.Short(12), err)
	}
	return c, nil
}
