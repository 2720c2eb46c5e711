// Package cmd provides CLI command implementations for ninmem.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Benny93/ninmem-go/internal/ingestion"
	"github.com/Benny93/ninmem-go/internal/metrics"
	"github.com/Benny93/ninmem-go/internal/query"
	"github.com/Benny93/ninmem-go/internal/storage"
	"github.com/Benny93/ninmem-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// metaFile sits next to the database directory and describes the last
// import.
const metaFile = "meta.json"

// dirScheme selects a directory of plain JSON documents instead of Badger,
// e.g. --db dir:.ninmem/docs.
const dirScheme = "dir:"

// Globals are the flags shared by every command.
type Globals struct {
	DB         string `name:"db" env:"NINMEM_DB" default:".ninmem/badger" help:"Badger database directory, or dir:<path> for a plain JSON document directory"`
	MaxEntries int    `name:"rtree-max-entries" env:"NINMEM_RTREE_MAX_ENTRIES" default:"9" help:"R-tree node capacity"`
	CacheSize  int    `env:"NINMEM_CACHE_SIZE" default:"100" help:"Statistics cache capacity"`
	Verbose    bool   `short:"v" help:"Enable debug logging"`
	Quiet      bool   `short:"q" help:"Suppress non-essential output"`
	LogJSON    bool   `name:"log-json" help:"Log as JSON"`

	out io.Writer
	in  io.Reader
	log io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

func (g *Globals) stdin() io.Reader {
	if g.in == nil {
		return os.Stdin
	}
	return g.in
}

// logger builds the process logger. Logs go to stderr so stdout stays free
// for command output and the MCP stream.
func (g *Globals) logger() *slog.Logger {
	w := g.log
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch {
	case g.Verbose:
		opts.Level = slog.LevelDebug
	case g.Quiet:
		opts.Level = slog.LevelWarn
	}
	if g.LogJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (g *Globals) options(logger *slog.Logger, m *metrics.Metrics) ingestion.Options {
	opts := ingestion.Options{
		Logger:     logger,
		Metrics:    m,
		MaxEntries: g.MaxEntries,
		CacheSize:  g.CacheSize,
	}
	if !g.Quiet {
		out := g.stdout()
		opts.Progress = func(phase string, pct float64) {
			fmt.Fprintf(out, "\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}
	return opts
}

// dbPath returns the database directory with any scheme removed, and
// whether it names a plain document directory.
func (g *Globals) dbPath() (string, bool) {
	if path, ok := strings.CutPrefix(g.DB, dirScheme); ok {
		return path, true
	}
	return g.DB, false
}

func (g *Globals) metaPath() string {
	path, _ := g.dbPath()
	return filepath.Join(filepath.Dir(path), metaFile)
}

func (g *Globals) hasIndex() bool {
	path, _ := g.dbPath()
	_, err := os.Stat(path)
	return err == nil
}

// openStore opens the database. Read-only opens require an existing index.
func (g *Globals) openStore(readOnly bool) (storage.Store, error) {
	if readOnly && !g.hasIndex() {
		return nil, fmt.Errorf("no index found at %s. Run 'ninmem import' first", g.DB)
	}
	path, files := g.dbPath()
	if !readOnly {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	var store storage.Store = storage.NewBadgerStore()
	if files {
		store = storage.NewFileStore()
	}
	if err := store.Initialize(path, readOnly); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// loadService builds an engine from the database and returns a query
// service over it. The database is closed once the engine is in memory.
func (g *Globals) loadService(ctx context.Context) (*query.Service, error) {
	store, err := g.openStore(true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	opts := g.options(g.logger(), nil)
	opts.Progress = nil
	engine, _, err := ingestion.RunPipeline(ctx, store, opts)
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}
	return query.New(ingestion.NewLiveEngine(engine), nil), nil
}

// ImportCmd copies a data directory into the database.
type ImportCmd struct {
	Data string `arg:"" optional:"" env:"NINMEM_DATA" help:"Directory holding the input documents"`
}

// Run executes the import command.
func (c *ImportCmd) Run(g *Globals) error {
	ctx := context.Background()
	out := g.stdout()

	dataDir, err := resolveDataDir(c.Data)
	if err != nil {
		return err
	}
	if !g.Quiet {
		color.New(color.FgGreen).Fprintf(out, "Importing %s\n", dataDir)
	}

	store, err := g.openStore(false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	result, err := ingestion.ImportDir(ctx, dataDir, store, g.options(g.logger(), nil))
	if err != nil {
		return fmt.Errorf("importing: %w", err)
	}
	if !g.Quiet {
		fmt.Fprintln(out) // Newline after progress
	}

	meta := map[string]any{
		"version":     Version,
		"data":        dataDir,
		"documents":   len(result.Documents),
		"natureAreas": result.NatureAreas,
		"imported_at": time.Now().UTC().Format(time.RFC3339),
	}
	metaJSON, _ := json.MarshalIndent(meta, "", "  ")
	if err := os.WriteFile(g.metaPath(), metaJSON, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", metaFile, err)
	}

	color.New(color.FgGreen).Fprintln(out, "✓ Import complete")
	fmt.Fprintf(out, "  Documents:      %d\n", len(result.Documents))
	fmt.Fprintf(out, "  Nature areas:   %d\n", result.NatureAreas)
	fmt.Fprintf(out, "  Duration:       %.2fs\n", result.DurationSecs)
	return nil
}

// SearchCmd runs a free text search.
type SearchCmd struct {
	Query string `arg:"" help:"Search text"`
	Limit int    `short:"n" default:"10" help:"Maximum results (1-100)"`
	JSON  bool   `help:"Print results as JSON"`
}

// Run executes the search command.
func (c *SearchCmd) Run(g *Globals) error {
	svc, err := g.loadService(context.Background())
	if err != nil {
		return err
	}

	results, err := svc.Search(c.Query, c.Limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	out := g.stdout()
	if c.JSON {
		return writeJSON(out, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s  %s\n", i+1, color.CyanString(r.Code), formatNames(r.Names))
		if r.Parent != nil {
			fmt.Fprintf(out, "   Parent: %s %s\n", r.Parent.Code, formatNames(r.Parent.Names))
		}
	}
	return nil
}

// CodesCmd lists nature areas and taxa matching codes and a bounding box.
type CodesCmd struct {
	Codes string `arg:"" optional:"" help:"Comma separated codes"`
	BBox  string `name:"bbox" help:"Bounding box as minx,miny,maxx,maxy"`
	JSON  bool   `help:"Print results as JSON"`
}

// Run executes the codes command.
func (c *CodesCmd) Run(g *Globals) error {
	svc, err := g.loadService(context.Background())
	if err != nil {
		return err
	}

	codes, err := svc.Codes(c.Codes, c.BBox)
	if err != nil {
		return fmt.Errorf("matching codes: %w", err)
	}

	out := g.stdout()
	if c.JSON {
		return writeJSON(out, codes)
	}
	if len(codes) == 0 {
		fmt.Fprintln(out, "No nature areas or taxa match")
		return nil
	}
	for _, code := range codes {
		fmt.Fprintln(out, code)
	}
	return nil
}

// StatsCmd shows the statistics tree of a code.
type StatsCmd struct {
	Node  string `arg:"" optional:"" help:"Code to report on (default: the catalogue root)"`
	Codes string `help:"Comma separated codes to filter by"`
	BBox  string `name:"bbox" help:"Bounding box as minx,miny,maxx,maxy"`
	JSON  bool   `help:"Print results as JSON"`
}

// Run executes the stats command.
func (c *StatsCmd) Run(g *Globals) error {
	svc, err := g.loadService(context.Background())
	if err != nil {
		return err
	}

	r, err := svc.Stats(c.Node, c.Codes, c.BBox)
	if err != nil {
		return fmt.Errorf("computing statistics: %w", err)
	}

	out := g.stdout()
	if c.JSON {
		return writeJSON(out, r)
	}
	fmt.Fprintf(out, "%s (%s)\n", color.New(color.Bold).Sprint(r.Name), r.Code)
	if r.Parent != nil {
		fmt.Fprintf(out, "  Parent:         %s (%s)\n", r.Parent.Name, r.Parent.Code)
	}
	fmt.Fprintf(out, "  Taxa:           %d\n", r.TaxonCount)
	fmt.Fprintf(out, "  Nature areas:   %d\n", r.NatureAreaCount)
	fmt.Fprintf(out, "  Area:           %.2f\n", r.Area)
	if len(r.Children) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  %-16s %-24s %8s %8s %12s\n", "CODE", "NAME", "TAXA", "AREAS", "AREA")
		for _, ch := range r.Children {
			fmt.Fprintf(out, "  %-16s %-24s %8d %8d %12.2f\n", ch.Code, truncate(ch.Name, 24), ch.TaxonCount, ch.NatureAreaCount, ch.Area)
		}
	}
	return nil
}

// TreeCmd shows a code with its parent and children.
type TreeCmd struct {
	Code string `arg:"" optional:"" help:"Code to show (default: the catalogue root)"`
	JSON bool   `help:"Print results as JSON"`
}

// Run executes the tree command.
func (c *TreeCmd) Run(g *Globals) error {
	svc, err := g.loadService(context.Background())
	if err != nil {
		return err
	}

	node, err := svc.Tree(c.Code)
	if err != nil {
		return fmt.Errorf("reading code tree: %w", err)
	}

	out := g.stdout()
	if c.JSON {
		return writeJSON(out, node)
	}
	if node.Parent != nil {
		fmt.Fprintf(out, "%s (%s)\n", node.Parent.Name, node.Parent.Code)
	}
	fmt.Fprintf(out, "└─ %s (%s)\n", color.New(color.Bold).Sprint(node.Name), node.Code)
	for _, ch := range node.Children {
		marker := ""
		if ch.HasChildren {
			marker = " +"
		}
		fmt.Fprintf(out, "   ├─ %s (%s)%s\n", ch.Name, ch.Code, marker)
	}
	return nil
}

// ServeCmd starts the MCP server with optional watch mode.
type ServeCmd struct {
	Watch       bool          `short:"w" help:"Rebuild the engine when the data directory changes"`
	Data        string        `env:"NINMEM_DATA" help:"Data directory to import and watch"`
	Debounce    time.Duration `default:"2s" help:"How long changes must settle before a rebuild"`
	MetricsAddr string        `env:"NINMEM_METRICS_ADDR" help:"Serve Prometheus metrics on this address"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return c.serve(ctx, g, os.Stdin, os.Stdout)
}

func (c *ServeCmd) serve(ctx context.Context, g *Globals, stdin io.ReadCloser, stdout io.WriteCloser) error {
	logger := g.logger()
	m := metrics.New()

	// Note: no output to stdout here, the MCP stream owns it.
	opts := g.options(logger, m)
	opts.Progress = nil

	if c.Watch && c.Data == "" {
		return fmt.Errorf("--watch needs a data directory (--data or NINMEM_DATA)")
	}

	var dataDir string
	if c.Data != "" {
		var err error
		if dataDir, err = resolveDataDir(c.Data); err != nil {
			return err
		}
	}

	writable := c.Watch || (dataDir != "" && !g.hasIndex())
	store, err := g.openStore(!writable)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if dataDir != "" && !hasIndexedKeys(ctx, store) {
		logger.Info("database is empty, importing", "dir", dataDir)
		if _, err := ingestion.ImportDir(ctx, dataDir, store, opts); err != nil {
			return fmt.Errorf("importing: %w", err)
		}
	}

	engine, _, err := ingestion.RunPipeline(ctx, store, opts)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	live := ingestion.NewLiveEngine(engine)
	server := mcp.NewServer(query.New(live, m), logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		defer cancel()
		return ignoreCanceled(server.Run(gctx, stdin, stdout))
	})

	if c.Watch {
		grp.Go(func() error {
			return ignoreCanceled(ingestion.WatchDataDir(gctx, dataDir, c.Debounce, func(ctx context.Context) error {
				return live.Reload(ctx, dataDir, store, opts)
			}, logger))
		})
	}

	if c.MetricsAddr != "" {
		ln, err := net.Listen("tcp", c.MetricsAddr)
		if err != nil {
			cancel()
			_ = grp.Wait()
			return fmt.Errorf("listening on %s: %w", c.MetricsAddr, err)
		}
		grp.Go(func() error {
			return serveMetrics(gctx, ln, m.Handler(), logger)
		})
	}

	return grp.Wait()
}

func hasIndexedKeys(ctx context.Context, store storage.Store) bool {
	keys, err := store.Keys(ctx)
	return err == nil && len(keys) > 0
}

// serveMetrics serves /metrics on ln until ctx is done.
func serveMetrics(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// SetupCmd prints or writes MCP client configuration.
type SetupCmd struct {
	Claude   bool   `help:"Write .mcp.json for Claude Code"`
	Cursor   bool   `help:"Write .cursor/mcp.json for Cursor"`
	Data     string `help:"Data directory the server should watch"`
	FilePath string `help:"Custom file path for configuration"`
}

// Run executes the setup command.
func (c *SetupCmd) Run(g *Globals) error {
	config, err := c.generateConfig(g)
	if err != nil {
		return err
	}
	out := g.stdout()

	if !c.Claude && !c.Cursor && c.FilePath == "" {
		return writeJSON(out, config)
	}

	var paths []string
	if c.Claude {
		paths = append(paths, ".mcp.json")
	}
	if c.Cursor {
		paths = append(paths, filepath.Join(".cursor", "mcp.json"))
	}
	if c.FilePath != "" {
		paths = append(paths, c.FilePath)
	}
	for _, p := range paths {
		if err := writeConfig(p, config); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(out, "✓ Wrote MCP config to %s\n", p)
	}
	return nil
}

func (c *SetupCmd) generateConfig(g *Globals) (map[string]any, error) {
	path, files := g.dbPath()
	db, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving database path: %w", err)
	}
	if files {
		db = dirScheme + db
	}
	args := []string{"serve"}
	env := map[string]string{"NINMEM_DB": db}
	if c.Data != "" {
		data, err := filepath.Abs(c.Data)
		if err != nil {
			return nil, fmt.Errorf("resolving data path: %w", err)
		}
		args = append(args, "--watch")
		env["NINMEM_DATA"] = data
	}
	return map[string]any{
		"mcpServers": map[string]any{
			"ninmem": map[string]any{
				"command": "ninmem",
				"args":    args,
				"env":     env,
			},
		},
	}, nil
}

func writeConfig(configPath string, config map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// StatusCmd shows the state of the database.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(g *Globals) error {
	metaBytes, err := os.ReadFile(g.metaPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("no index found at %s. Run 'ninmem import' first", g.DB)
		}
		return fmt.Errorf("reading %s: %w", metaFile, err)
	}

	var meta map[string]any
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return fmt.Errorf("parsing %s: %w", metaFile, err)
	}

	store, err := g.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	keys, err := store.Keys(context.Background())
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	out := g.stdout()
	fmt.Fprintf(out, "Index status for %s\n", g.DB)
	if version, ok := meta["version"].(string); ok {
		fmt.Fprintf(out, "  Version:        %s\n", version)
	}
	if data, ok := meta["data"].(string); ok {
		fmt.Fprintf(out, "  Data:           %s\n", data)
	}
	if importedAt, ok := meta["imported_at"].(string); ok {
		fmt.Fprintf(out, "  Last imported:  %s\n", importedAt)
	}
	if areas, ok := meta["natureAreas"].(float64); ok {
		fmt.Fprintf(out, "  Nature areas:   %.0f\n", areas)
	}
	fmt.Fprintf(out, "  Stored keys:    %d\n", len(keys))
	for _, k := range keys {
		if k == storage.SnapshotKeyAreaIndex {
			fmt.Fprintln(out, "  Area index:     snapshot stored")
		}
	}
	return nil
}

// CleanCmd deletes the database.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(g *Globals) error {
	out := g.stdout()
	if !g.hasIndex() {
		return fmt.Errorf("no index found at %s. Nothing to clean", g.DB)
	}

	if !c.Force {
		fmt.Fprintf(out, "Delete index at %s? [y/N] ", g.DB)
		var response string
		_, _ = fmt.Fscanln(g.stdin(), &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	path, _ := g.dbPath()
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}
	if err := os.Remove(g.metaPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", metaFile, err)
	}

	color.New(color.FgGreen).Fprintf(out, "Deleted %s\n", g.DB)
	return nil
}

// Helper functions

func resolveDataDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("data directory required. Usage: ninmem import <dir> or set NINMEM_DATA")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("accessing %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func formatNames(names map[string]string) string {
	nb, la := names["nb"], names["la"]
	switch {
	case nb != "" && la != "" && nb != la:
		return fmt.Sprintf("%s (%s)", nb, la)
	case nb != "":
		return nb
	default:
		return la
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadDotEnv loads .env from the working directory without overriding
// variables that are already set.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading .env: %w", err)
}

// CLI is the command-line interface.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Import ImportCmd `cmd:"" help:"Import a data directory into the database"`
	Search SearchCmd `cmd:"" help:"Free text search over codes and names"`
	Codes  CodesCmd  `cmd:"" help:"List nature areas and taxa matching codes and a bounding box"`
	Stats  StatsCmd  `cmd:"" help:"Show taxon and nature area statistics below a code"`
	Tree   TreeCmd   `cmd:"" help:"Show a code with its parent and children"`
	Serve  ServeCmd  `cmd:"" help:"Start MCP server with optional watch mode"`
	Setup  SetupCmd  `cmd:"" help:"Configure MCP for Claude Code / Cursor"`
	Status StatusCmd `cmd:"" help:"Show index status"`
	Clean  CleanCmd  `cmd:"" help:"Delete the index"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	if err := loadDotEnv(); err != nil {
		return err
	}

	parser, err := kong.New(c,
		kong.Name("ninmem"),
		kong.Description("In-memory nature and taxon knowledge graph"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
		kong.Bind(&c.Globals),
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run()
}
