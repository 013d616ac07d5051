// Package ref provides the ref table: name qualification rules, kinds, and
// SQLite-backed CRUD for the native backend.
package ref

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"revq/internal/graph"
	"revq/internal/store"
	"revq/internal/util"
)

// Kind classifies a ref by its name.
type Kind string

const (
	KindBranch       Kind = "branch"
	KindTag          Kind = "tag"
	KindRemoteBranch Kind = "remote-branch"
	KindOther        Kind = "other"
)

const (
	headsPrefix   = "refs/heads/"
	tagsPrefix    = "refs/tags/"
	remotesPrefix = "refs/remotes/"
)

// KindOf returns the kind of a fully-qualified ref name.
func KindOf(name string) Kind {
	switch {
	case strings.HasPrefix(name, headsPrefix):
		return KindBranch
	case strings.HasPrefix(name, tagsPrefix):
		return KindTag
	case strings.HasPrefix(name, remotesPrefix):
		return KindRemoteBranch
	default:
		return KindOther
	}
}

// ShortName strips the refs/heads/, refs/tags/ or refs/remotes/ prefix.
func ShortName(name string) string {
	for _, p := range []string{headsPrefix, tagsPrefix, remotesPrefix} {
		if strings.HasPrefix(name, p) {
			return name[len(p):]
		}
	}
	return name
}

// Candidates returns the full ref names a symbol may refer to, in lookup
// order. The first name present in the ref table wins:
//   - "refs/..." is taken as-is
//   - "heads/<name>" and "tags/<name>" gain a "refs/" prefix
//   - any symbol is tried as a branch, then as a tag
//   - "<remote>/<branch>" is tried as a remote-tracking branch
func Candidates(symbol string) []string {
	var names []string
	if strings.HasPrefix(symbol, "refs/") {
		names = append(names, symbol)
	}
	if strings.HasPrefix(symbol, "heads/") || strings.HasPrefix(symbol, "tags/") {
		names = append(names, "refs/"+symbol)
	}
	names = append(names, headsPrefix+symbol, tagsPrefix+symbol)
	if i := strings.IndexByte(symbol, '/'); i > 0 && i < len(symbol)-1 {
		names = append(names, remotesPrefix+symbol)
	}
	return names
}

// Ref represents a named pointer to a commit.
type Ref struct {
	Name      string
	Target    store.CommitID
	CreatedAt int64
	UpdatedAt int64
}

// Kind returns the kind of the ref.
func (r *Ref) Kind() Kind {
	return KindOf(r.Name)
}

// Manager handles CRUD operations for refs.
type Manager struct {
	db *graph.DB
}

// NewManager creates a new ref manager.
func NewManager(db *graph.DB) *Manager {
	return &Manager{db: db}
}

// Set creates or updates a ref.
func (m *Manager) Set(name string, target store.CommitID) error {
	if name == "" {
		return fmt.Errorf("ref name must not be empty")
	}
	now := util.NowMs()
	_, err := m.db.Exec(`
		INSERT INTO refs (name, target_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			target_id = excluded.target_id,
			updated_at = excluded.updated_at
	`, name, target.Bytes(), now, now)
	if err != nil {
		return fmt.Errorf("setting ref %s: %w", name, err)
	}
	return nil
}

// Get retrieves a ref by name. It returns nil, nil if there is no such ref.
func (m *Manager) Get(name string) (*Ref, error) {
	var r Ref
	var target []byte
	err := m.db.QueryRow(`SELECT name, target_id, created_at, updated_at FROM refs WHERE name = ?`, name).
		Scan(&r.Name, &target, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying ref: %w", err)
	}
	r.Target = store.NewCommitID(target)
	return &r, nil
}

// Delete removes a ref.
func (m *Manager) Delete(name string) error {
	result, err := m.db.Exec(`DELETE FROM refs WHERE name = ?`, name)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("ref not found: %s", name)
	}
	return nil
}

// List returns all refs ordered by name. If match is non-empty, only refs
// whose name matches the doublestar glob are returned.
func (m *Manager) List(match string) ([]*Ref, error) {
	if match != "" && !doublestar.ValidatePattern(match) {
		return nil, fmt.Errorf("invalid ref pattern: %s", match)
	}

	rows, err := m.db.Query(`SELECT name, target_id, created_at, updated_at FROM refs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []*Ref
	for rows.Next() {
		var r Ref
		var target []byte
		if err := rows.Scan(&r.Name, &target, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if match != "" {
			if ok, _ := doublestar.Match(match, r.Name); !ok {
				continue
			}
		}
		r.Target = store.NewCommitID(target)
		refs = append(refs, &r)
	}
	return refs, rows.Err()
}

// LoadInto copies the whole ref table into b.
func (m *Manager) LoadInto(b *store.Builder) error {
	refs, err := m.List("")
	if err != nil {
		return fmt.Errorf("loading refs: %w", err)
	}
	for _, r := range refs {
		b.SetRef(r.Name, r.Target)
	}
	return nil
}

// Match filters ref names by a doublestar glob. An empty pattern matches everything.
func Match(pattern string, names []string) ([]string, error) {
	if pattern == "" {
		return names, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid ref pattern: %s", pattern)
	}
	var out []string
	for _, name := range names {
		if ok, _ := doublestar.Match(pattern, name); ok {
			out = append(out, name)
		}
	}
	return out, nil
}
