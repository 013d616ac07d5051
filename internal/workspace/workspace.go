// Package workspace locates, creates and loads revq workspaces.
//
// A workspace is a directory containing a .revq directory, which holds the
// configuration and, for the native backend, the commit database.
package workspace

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"revq/internal/config"
	"revq/internal/gitio"
	"revq/internal/graph"
	"revq/internal/ref"
	"revq/internal/store"
	"revq/internal/util"
)

const (
	// DirName is the name of the workspace metadata directory.
	DirName    = ".revq"
	configFile = "config.yaml"
	dbFile     = "db.sqlite"
)

// ErrNotNative is returned by operations that write to the commit graph when
// the workspace reads commits from Git.
var ErrNotNative = errors.New("workspace uses the git backend, which is read-only")

// DestinationExistsError indicates Init found an existing workspace.
type DestinationExistsError struct {
	Path string
}

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("workspace already exists at %s", e.Path)
}

// NoWorkspaceError indicates no .revq directory was found at or above Path.
type NoWorkspaceError struct {
	Path string
}

func (e *NoWorkspaceError) Error() string {
	return fmt.Sprintf("no revq workspace found at or above %s", e.Path)
}

// Workspace is an opened workspace.
type Workspace struct {
	Root   string
	Config *config.Config
}

// InitOptions controls workspace creation.
type InitOptions struct {
	// GitPath selects the git backend, reading commits from the repository at
	// this path. Empty selects the native backend.
	GitPath string
}

// Init creates a workspace in root.
func Init(root string, opts InitOptions) (*Workspace, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	dir := filepath.Join(root, DirName)
	if _, err := os.Stat(dir); err == nil {
		return nil, &DestinationExistsError{Path: dir}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking %s: %w", dir, err)
	}

	cfg := config.Default()
	if opts.GitPath != "" {
		cfg.Backend = config.BackendGit
		cfg.GitPath = opts.GitPath
	}
	ws := &Workspace{Root: root, Config: cfg}

	if cfg.Backend == config.BackendGit {
		repo, err := gitio.Open(ws.GitRepoPath())
		if err != nil {
			return nil, err
		}
		log.Printf("workspace: reading commits from git repository %s", repo.Path())
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s directory: %w", DirName, err)
	}
	if err := cfg.Save(filepath.Join(dir, configFile)); err != nil {
		return nil, err
	}

	if cfg.Backend == config.BackendNative {
		db, err := graph.Open(filepath.Join(dir, dbFile))
		if err != nil {
			return nil, err
		}
		defer db.Close()
		if err := db.EnsureSchema(); err != nil {
			return nil, err
		}
		if _, err := db.InitRoot(); err != nil {
			return nil, fmt.Errorf("storing root commit: %w", err)
		}
	}

	log.Printf("workspace: initialized %s backend in %s", cfg.Backend, dir)
	return ws, nil
}

// Load opens the workspace containing path, searching parent directories.
func Load(path string) (*Workspace, error) {
	start, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	for dir := start; ; {
		info, err := os.Stat(filepath.Join(dir, DirName))
		if err == nil && info.IsDir() {
			cfg, err := config.Load(filepath.Join(dir, DirName, configFile))
			if err != nil {
				return nil, err
			}
			return &Workspace{Root: dir, Config: cfg}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, &NoWorkspaceError{Path: start}
		}
		dir = parent
	}
}

// Dir returns the path of the .revq directory.
func (w *Workspace) Dir() string {
	return filepath.Join(w.Root, DirName)
}

// GitRepoPath returns the absolute path of the configured Git repository.
func (w *Workspace) GitRepoPath() string {
	if filepath.IsAbs(w.Config.GitPath) {
		return w.Config.GitPath
	}
	return filepath.Join(w.Root, w.Config.GitPath)
}

// OpenDB opens the commit database. It fails with ErrNotNative for git
// backed workspaces.
func (w *Workspace) OpenDB() (*graph.DB, error) {
	if w.Config.Backend != config.BackendNative {
		return nil, ErrNotNative
	}
	db, err := graph.Open(filepath.Join(w.Dir(), dbFile))
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Snapshot loads the current commits, refs and checkout from the configured
// backend.
func (w *Workspace) Snapshot() (*store.Snapshot, error) {
	switch w.Config.Backend {
	case config.BackendGit:
		repo, err := gitio.Open(w.GitRepoPath())
		if err != nil {
			return nil, err
		}
		return repo.Load()
	case config.BackendNative:
		db, err := w.OpenDB()
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return LoadNative(db)
	default:
		return nil, fmt.Errorf("unknown backend %q", w.Config.Backend)
	}
}

// LoadNative builds a snapshot from a native commit database.
func LoadNative(db *graph.DB) (*store.Snapshot, error) {
	b := store.NewBuilder(util.IDSize)
	if err := db.LoadCommits(b); err != nil {
		return nil, fmt.Errorf("loading commits: %w", err)
	}
	if err := ref.NewManager(db).LoadInto(b); err != nil {
		return nil, err
	}
	checkout, err := db.Checkout()
	if err != nil {
		return nil, err
	}
	if !checkout.IsZero() {
		b.SetCheckout(checkout)
	}
	return b.Build()
}
