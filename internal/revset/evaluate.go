package revset

import (
	"fmt"

	"revq/internal/store"
)

// Evaluate computes the commits named by expr, in a deterministic order and
// without duplicates. The first error aborts evaluation; no partial result is
// returned.
//
// Ordering:
//   - Parents emits, for each input commit in order, its parents last-first.
//     A parent shared by several inputs is emitted once, at its first position.
//   - Ancestors walks depth-first from each input in order, visiting parents
//     last-first, and emits each commit before its parents, once.
//   - Union, Intersection, Difference and Range keep the order of their
//     left-hand side (Range: of the ancestors of To), Union appending
//     unseen commits from the right.
func Evaluate(view store.View, st store.Store, expr Expression) ([]store.CommitID, error) {
	ev := &evaluator{view: view, store: st}
	return ev.eval(expr)
}

// Query parses text and evaluates it.
func Query(view store.View, st store.Store, text string) ([]store.CommitID, error) {
	expr, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return Evaluate(view, st, expr)
}

type evaluator struct {
	view  store.View
	store store.Store
}

func (ev *evaluator) eval(expr Expression) ([]store.CommitID, error) {
	switch e := expr.(type) {
	case Symbol:
		c, err := Resolve(ev.view, ev.store, e.Name)
		if err != nil {
			return nil, err
		}
		return []store.CommitID{c.ID}, nil
	case Parents:
		children, err := ev.eval(e.Of)
		if err != nil {
			return nil, err
		}
		return ev.parents(children)
	case Ancestors:
		heads, err := ev.eval(e.Of)
		if err != nil {
			return nil, err
		}
		return ev.ancestors(heads)
	case Union:
		left, right, err := ev.evalBoth(e.Left, e.Right)
		if err != nil {
			return nil, err
		}
		seen := newIDSet(left)
		out := append([]store.CommitID(nil), left...)
		for _, id := range right {
			if seen.add(id) {
				out = append(out, id)
			}
		}
		return out, nil
	case Intersection:
		left, right, err := ev.evalBoth(e.Left, e.Right)
		if err != nil {
			return nil, err
		}
		return filter(left, newIDSet(right), true), nil
	case Difference:
		left, right, err := ev.evalBoth(e.Left, e.Right)
		if err != nil {
			return nil, err
		}
		return filter(left, newIDSet(right), false), nil
	case Range:
		return ev.eval(Difference{Left: Ancestors{Of: e.To}, Right: Ancestors{Of: e.From}})
	default:
		return nil, fmt.Errorf("unsupported revset expression %T", expr)
	}
}

func (ev *evaluator) evalBoth(l, r Expression) ([]store.CommitID, []store.CommitID, error) {
	left, err := ev.eval(l)
	if err != nil {
		return nil, nil, err
	}
	right, err := ev.eval(r)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (ev *evaluator) parents(children []store.CommitID) ([]store.CommitID, error) {
	var out []store.CommitID
	seen := make(idSet)
	for _, id := range children {
		c, err := ev.getCommit(id)
		if err != nil {
			return nil, err
		}
		for i := len(c.Parents) - 1; i >= 0; i-- {
			if seen.add(c.Parents[i]) {
				out = append(out, c.Parents[i])
			}
		}
	}
	return out, nil
}

// ancestors is an iterative pre-order DFS sharing one visited set across all
// heads. Parents are pushed first-to-last so the last parent is popped first.
func (ev *evaluator) ancestors(heads []store.CommitID) ([]store.CommitID, error) {
	var out []store.CommitID
	visited := make(idSet)
	var stack []store.CommitID
	for _, head := range heads {
		stack = append(stack[:0], head)
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !visited.add(id) {
				continue
			}
			out = append(out, id)

			c, err := ev.getCommit(id)
			if err != nil {
				return nil, err
			}
			for _, p := range c.Parents {
				if !visited.has(p) {
					stack = append(stack, p)
				}
			}
		}
	}
	return out, nil
}

func (ev *evaluator) getCommit(id store.CommitID) (*store.Commit, error) {
	c, err := ev.store.GetCommit(id)
	if err != nil {
		return nil, fmt.Errorf("evaluating revset: %w", err)
	}
	return c, nil
}

type idSet map[store.CommitID]struct{}

func newIDSet(ids []store.CommitID) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// add inserts id and reports whether it was new.
func (s idSet) add(id store.CommitID) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

func (s idSet) has(id store.CommitID) bool {
	_, ok := s[id]
	return ok
}

func filter(ids []store.CommitID, set idSet, keep bool) []store.CommitID {
	out := make([]store.CommitID, 0, len(ids))
	for _, id := range ids {
		if set.has(id) == keep {
			out = append(out, id)
		}
	}
	return out
}
