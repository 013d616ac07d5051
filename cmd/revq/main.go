// Package main provides the revq CLI.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"revq/internal/bundle"
	"revq/internal/config"
	"revq/internal/graph"
	"revq/internal/ref"
	"revq/internal/revset"
	"revq/internal/store"
	"revq/internal/workspace"
)

// Version is the revq version string.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "revq",
	Short:   "Query a commit graph with revsets",
	Long:    `revq resolves and evaluates revset expressions against a native commit store or a Git repository.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(debugFlag)
	},
	SilenceUsage: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a revq workspace in the current directory",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the commits selected by a revset",
	Long: `Show the commits selected by a revset, one per line.

The checked-out commit is marked with @, other commits with o. Refs
pointing at a commit are listed in brackets after its id.

Examples:
  revq log
  revq log -r '*:main ~ *:origin/main'
  revq log -r ':@' --limit 5`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <symbol>",
	Short: "Print the full id of the commit a symbol names",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

var parseCmd = &cobra.Command{
	Use:   "parse <revset>",
	Short: "Parse a revset and print its canonical form",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "List refs",
	Args:  cobra.NoArgs,
	RunE:  runRefs,
}

var refCmd = &cobra.Command{
	Use:   "ref",
	Short: "Manage refs",
	Long: `Create and delete refs in a native workspace.

Names without a refs/ prefix are branches under refs/heads/.

Examples:
  revq ref set main @
  revq ref set refs/tags/v1 :@
  revq ref delete main`,
}

var refSetCmd = &cobra.Command{
	Use:   "set <name> <revset>",
	Short: "Create or update a ref",
	Args:  cobra.ExactArgs(2),
	RunE:  runRefSet,
}

var refDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a ref",
	Args:  cobra.ExactArgs(1),
	RunE:  runRefDelete,
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a commit and check it out",
	Long: `Create a new commit whose parents are the commits selected by a revset,
and move the checkout to it.`,
	Args: cobra.NoArgs,
	RunE: runNew,
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <revset>",
	Short: "Move the checkout to a commit",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckout,
}

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Snapshot bundle commands",
}

var bundleExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write all commits, refs and the checkout to a bundle file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundleExport,
}

var (
	debugFlag   bool
	bundlePath  string
	initGitPath string
	logRevset   string
	logLimit    int
	refsMatch   string
	newRevset   string
	newMessage  string
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&bundlePath, "bundle", "", "Read commits from a bundle file instead of the workspace")

	initCmd.Flags().StringVar(&initGitPath, "git", "", "Read commits from the Git repository at this path")
	logCmd.Flags().StringVarP(&logRevset, "revisions", "r", "", "Revset to show (default from config)")
	logCmd.Flags().IntVar(&logLimit, "limit", -1, "Maximum number of commits to show (default from config)")
	refsCmd.Flags().StringVar(&refsMatch, "match", "", "Only list refs matching this glob (e.g. 'refs/heads/**')")
	newCmd.Flags().StringVarP(&newRevset, "revisions", "r", "@", "Parents of the new commit")
	newCmd.Flags().StringVarP(&newMessage, "message", "m", "", "Commit description")

	refCmd.AddCommand(refSetCmd)
	refCmd.AddCommand(refDeleteCmd)
	bundleCmd.AddCommand(bundleExportCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(refsCmd)
	rootCmd.AddCommand(refCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(bundleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	if debug {
		log.SetOutput(os.Stderr)
		return
	}
	log.SetOutput(io.Discard)
}

func runInit(cmd *cobra.Command, args []string) error {
	ws, err := workspace.Init(".", workspace.InitOptions{GitPath: initGitPath})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized revq workspace in %s (%s backend)\n", ws.Dir(), ws.Config.Backend)
	return nil
}

// loadSnapshot reads the snapshot from --bundle if given, otherwise from the
// workspace containing the current directory.
func loadSnapshot() (*store.Snapshot, *config.Config, error) {
	if bundlePath != "" {
		f, err := os.Open(bundlePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening bundle: %w", err)
		}
		defer f.Close()
		snap, err := bundle.Read(f)
		if err != nil {
			return nil, nil, err
		}
		return snap, config.Default(), nil
	}

	ws, err := loadWorkspace()
	if err != nil {
		return nil, nil, err
	}
	snap, err := ws.Snapshot()
	if err != nil {
		return nil, nil, err
	}
	return snap, ws.Config, nil
}

func loadWorkspace() (*workspace.Workspace, error) {
	ws, err := workspace.Load(".")
	if err != nil {
		return nil, err
	}
	if ws.Config.Debug {
		setupLogging(true)
	}
	return ws, nil
}

// openNative opens the commit database of a native workspace along with a
// snapshot of its current state. The caller must close the database.
func openNative() (*graph.DB, *store.Snapshot, *config.Config, error) {
	if bundlePath != "" {
		return nil, nil, nil, fmt.Errorf("cannot modify a bundle")
	}
	ws, err := loadWorkspace()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := ws.OpenDB()
	if err != nil {
		return nil, nil, nil, err
	}
	snap, err := workspace.LoadNative(db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return db, snap, ws.Config, nil
}

// singleCommit evaluates text and requires exactly one commit.
func singleCommit(snap *store.Snapshot, text string) (store.CommitID, error) {
	ids, err := revset.Query(snap, snap, text)
	if err != nil {
		return store.CommitID{}, err
	}
	if len(ids) != 1 {
		return store.CommitID{}, fmt.Errorf("revset %q resolved to %d commits, expected exactly one", text, len(ids))
	}
	return ids[0], nil
}

func runLog(cmd *cobra.Command, args []string) error {
	snap, cfg, err := loadSnapshot()
	if err != nil {
		return err
	}

	text := logRevset
	if text == "" {
		text = cfg.DefaultRevset
	}
	limit := logLimit
	if limit < 0 {
		limit = cfg.LogLimit
	}

	ids, err := revset.Query(snap, snap, text)
	if err != nil {
		return err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	labels := make(map[store.CommitID][]string)
	for _, name := range snap.RefNames() {
		id, _ := snap.Ref(name)
		labels[id] = append(labels[id], ref.ShortName(name))
	}

	out := cmd.OutOrStdout()
	for _, id := range ids {
		c, err := snap.GetCommit(id)
		if err != nil {
			return err
		}
		marker := "o"
		if id == snap.Checkout() {
			marker = "@"
		}
		line := fmt.Sprintf("%s %s", marker, id.Short(cfg.ShortIDLength))
		if names := labels[id]; len(names) > 0 {
			line += " [" + strings.Join(names, " ") + "]"
		}
		if id == snap.RootCommit().ID {
			line += " (root)"
		} else if desc := firstLine(c.Description); desc != "" {
			line += " " + desc
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func runResolve(cmd *cobra.Command, args []string) error {
	snap, _, err := loadSnapshot()
	if err != nil {
		return err
	}
	c, err := revset.Resolve(snap, snap, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), c.ID.Hex())
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	expr, err := revset.Parse(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), expr.String())
	return nil
}

func runRefs(cmd *cobra.Command, args []string) error {
	refs, cfg, err := listRefs()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(refs) == 0 {
		fmt.Fprintln(out, "No refs found.")
		return nil
	}
	for _, r := range refs {
		fmt.Fprintf(out, "%-40s  %-14s  %s\n", r.Name, r.Kind(), r.Target.Short(cfg.ShortIDLength))
	}
	return nil
}

// listRefs returns the refs matching --match. Native workspaces are read
// from the ref table, bundles and git workspaces from their snapshot.
func listRefs() ([]*ref.Ref, *config.Config, error) {
	if bundlePath == "" {
		ws, err := loadWorkspace()
		if err != nil {
			return nil, nil, err
		}
		if ws.Config.Backend == config.BackendNative {
			db, err := ws.OpenDB()
			if err != nil {
				return nil, nil, err
			}
			defer db.Close()
			refs, err := ref.NewManager(db).List(refsMatch)
			return refs, ws.Config, err
		}
	}

	snap, cfg, err := loadSnapshot()
	if err != nil {
		return nil, nil, err
	}
	names, err := ref.Match(refsMatch, snap.RefNames())
	if err != nil {
		return nil, nil, err
	}
	refs := make([]*ref.Ref, 0, len(names))
	for _, name := range names {
		id, _ := snap.Ref(name)
		refs = append(refs, &ref.Ref{Name: name, Target: id})
	}
	return refs, cfg, nil
}

// qualifyRefName puts bare names under refs/heads/.
func qualifyRefName(name string) string {
	if strings.HasPrefix(name, "refs/") {
		return name
	}
	return "refs/heads/" + name
}

func runRefSet(cmd *cobra.Command, args []string) error {
	db, snap, cfg, err := openNative()
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := singleCommit(snap, args[1])
	if err != nil {
		return err
	}
	name := qualifyRefName(args[0])
	if err := ref.NewManager(db).Set(name, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", name, id.Short(cfg.ShortIDLength))
	return nil
}

func runRefDelete(cmd *cobra.Command, args []string) error {
	db, _, cfg, err := openNative()
	if err != nil {
		return err
	}
	defer db.Close()

	name := qualifyRefName(args[0])
	mgr := ref.NewManager(db)
	r, err := mgr.Get(name)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("ref not found: %s", name)
	}
	if err := mgr.Delete(name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (was %s)\n", name, r.Target.Short(cfg.ShortIDLength))
	return nil
}

func runNew(cmd *cobra.Command, args []string) error {
	db, snap, cfg, err := openNative()
	if err != nil {
		return err
	}
	defer db.Close()

	parents, err := revset.Query(snap, snap, newRevset)
	if err != nil {
		return err
	}
	if len(parents) == 0 {
		return fmt.Errorf("revset %q is empty, a commit needs at least one parent", newRevset)
	}

	c, err := db.CreateCommit(parents, newMessage, author())
	if err != nil {
		return fmt.Errorf("creating commit: %w", err)
	}
	if err := db.SetCheckout(c.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", c.ID.Short(cfg.ShortIDLength))
	return nil
}

func author() string {
	for _, key := range []string{"REVQ_AUTHOR", "USER", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}

func runCheckout(cmd *cobra.Command, args []string) error {
	db, snap, cfg, err := openNative()
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := singleCommit(snap, args[0])
	if err != nil {
		return err
	}
	if err := db.SetCheckout(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Checked out %s\n", id.Short(cfg.ShortIDLength))
	return nil
}

func runBundleExport(cmd *cobra.Command, args []string) error {
	snap, _, err := loadSnapshot()
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("creating bundle: %w", err)
	}
	if err := bundle.Write(f, snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing bundle: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d commits to %s\n", snap.Len()-1, args[0])
	return nil
}
