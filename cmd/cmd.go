// Package cmd provides CLI command implementations for Engram.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/engramdev/engram-go/internal/graph"
	"github.com/engramdev/engram-go/internal/history"
	"github.com/engramdev/engram-go/internal/store"
	"github.com/engramdev/engram-go/internal/watch"
	"github.com/engramdev/engram-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// defaultFileName is the graph file created beside the executable when no
// override is configured.
const defaultFileName = "memory.jsonl"

// resolveMemoryPath resolves the graph file location. An empty override
// yields the default file in baseDir; a relative override is resolved
// against baseDir; an absolute override is used as-is.
func resolveMemoryPath(baseDir, override string) string {
	if override == "" {
		return filepath.Join(baseDir, defaultFileName)
	}
	if filepath.IsAbs(override) {
		return override
	}
	return filepath.Join(baseDir, override)
}

// memoryPath returns the configured graph file path, anchored at the
// directory of the running executable.
func (c *CLI) memoryPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}
	return resolveMemoryPath(filepath.Dir(exe), c.File), nil
}

// openStore creates the store for the configured path. Skipped-line
// diagnostics from loads are reported on stderr.
func (c *CLI) openStore() (*store.Store, error) {
	path, err := c.memoryPath()
	if err != nil {
		return nil, err
	}

	st := store.New(path)
	st.Warnf = func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
	}
	return st, nil
}

// MCPCmd starts the MCP server on stdio.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run(cli *CLI) error {
	st, err := cli.openStore()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout belongs to the protocol; status goes to stderr.
	fmt.Fprintf(os.Stderr, "engram MCP server starting (graph: %s)\n", st.Path())
	return mcp.NewServer(st).Run(ctx)
}

// ServeCmd starts the MCP server with optional external-writer watching.
type ServeCmd struct {
	Watch bool `short:"w" help:"Report external changes to the graph file on stderr"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(cli *CLI) error {
	st, err := cli.openStore()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if c.Watch {
		go func() {
			err := watch.File(ctx, st.Path(), func() {
				fmt.Fprintf(os.Stderr, "graph file changed on disk: %s\n", st.Path())
			})
			if err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
			}
		}()
		fmt.Fprintln(os.Stderr, "File watching enabled")
	}

	fmt.Fprintf(os.Stderr, "engram MCP server starting (graph: %s)\n", st.Path())
	return mcp.NewServer(st).Run(ctx)
}

// ReadCmd dumps the full graph as JSON.
type ReadCmd struct{}

// Run executes the read command.
func (c *ReadCmd) Run(cli *CLI) error {
	st, err := cli.openStore()
	if err != nil {
		return err
	}

	g, err := st.ReadGraph(context.Background())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// SearchCmd searches entities by substring.
type SearchCmd struct {
	Query string `arg:"" help:"Search query (matches name, type, and observations)"`
}

// Run executes the search command.
func (c *SearchCmd) Run(cli *CLI) error {
	st, err := cli.openStore()
	if err != nil {
		return err
	}

	g, err := st.SearchNodes(context.Background(), c.Query)
	if err != nil {
		return err
	}

	if len(g.Entities) == 0 {
		fmt.Println("No matching entities")
		return nil
	}

	printGraph(g)
	return nil
}

// OpenCmd retrieves entities by exact name.
type OpenCmd struct {
	Names []string `arg:"" help:"Exact entity names"`
}

// Run executes the open command.
func (c *OpenCmd) Run(cli *CLI) error {
	st, err := cli.openStore()
	if err != nil {
		return err
	}

	g, err := st.OpenNodes(context.Background(), c.Names)
	if err != nil {
		return err
	}

	if len(g.Entities) == 0 {
		fmt.Println("No matching entities")
		return nil
	}

	printGraph(g)
	return nil
}

// StaleCmd lists entities that have not been updated recently.
type StaleCmd struct {
	Days int    `short:"d" default:"30" help:"Staleness threshold in days"`
	Type string `short:"t" help:"Optional entity type filter"`
}

// Run executes the stale command.
func (c *StaleCmd) Run(cli *CLI) error {
	st, err := cli.openStore()
	if err != nil {
		return err
	}

	stale, err := st.GetStaleEntities(context.Background(), c.Days, c.Type)
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		color.Green("No entities older than %d days", c.Days)
		return nil
	}

	fmt.Printf("Entities not updated in %d days:\n\n", c.Days)
	for _, s := range stale {
		fmt.Printf("  %s (%s) - %d days, %d accesses\n", s.Name, s.EntityType, s.DaysSinceUpdate, metadataAccessCount(s.Entity))
		fmt.Printf("    %s\n", s.Recommendation)
	}
	return nil
}

// FrequentCmd lists the most-accessed entities.
type FrequentCmd struct {
	Min  int    `short:"m" default:"5" help:"Minimum access count"`
	Type string `short:"t" help:"Optional entity type filter"`
}

// Run executes the frequent command.
func (c *FrequentCmd) Run(cli *CLI) error {
	st, err := cli.openStore()
	if err != nil {
		return err
	}

	frequent, err := st.GetFrequentlyUsed(context.Background(), c.Min, c.Type)
	if err != nil {
		return err
	}

	if len(frequent) == 0 {
		fmt.Printf("No entities with at least %d accesses\n", c.Min)
		return nil
	}

	for _, e := range frequent {
		fmt.Printf("  %s (%s) - %d accesses\n", e.Name, e.EntityType, metadataAccessCount(e))
	}
	return nil
}

// VerifyCmd checks referential integrity of the stored relations.
type VerifyCmd struct {
	MaxSuggestions int `default:"3" help:"Maximum repair suggestions per orphan"`
}

// Run executes the verify command.
func (c *VerifyCmd) Run(cli *CLI) error {
	st, err := cli.openStore()
	if err != nil {
		return err
	}

	report, err := st.VerifyGraphIntegrity(context.Background(), c.MaxSuggestions)
	if err != nil {
		return err
	}

	if report.Valid {
		color.Green("✓ Graph integrity OK (%d relations)", report.Summary.TotalRelations)
		return nil
	}

	color.Red("Found %d orphaned relations (%d missing entities)",
		report.Summary.OrphanedRelations, len(report.Summary.MissingEntities))
	fmt.Println()

	for _, o := range report.Orphans {
		fmt.Printf("  %s -> %s (%s): missing %s entity %q\n",
			o.Relation.From, o.Relation.To, o.Relation.RelationType, o.Position, o.MissingEntity)
		for _, sug := range o.Suggestions {
			fmt.Printf("    did you mean %q? (similarity %.2f)\n", sug.Name, sug.Similarity)
		}
	}
	return nil
}

// StatusCmd shows graph file statistics.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(cli *CLI) error {
	st, err := cli.openStore()
	if err != nil {
		return err
	}

	g, err := st.ReadGraph(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Graph file:  %s\n", st.Path())
	fmt.Printf("Entities:    %d\n", len(g.Entities))
	fmt.Printf("Relations:   %d\n", len(g.Relations))

	if info, err := os.Stat(st.Path()); err == nil {
		fmt.Printf("Size:        %d bytes\n", info.Size())
		fmt.Printf("Modified:    %s\n", info.ModTime().UTC().Format("2006-01-02 15:04:05 UTC"))
	} else if os.IsNotExist(err) {
		fmt.Println("File not created yet (first save will create it)")
	}
	return nil
}

// WatchCmd reports external changes to the graph file until interrupted.
type WatchCmd struct{}

// Run executes the watch command.
func (c *WatchCmd) Run(cli *CLI) error {
	st, err := cli.openStore()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n\n", st.Path())

	err = watch.File(ctx, st.Path(), func() {
		g, _, loadErr := st.Load()
		if loadErr != nil {
			fmt.Fprintf(os.Stderr, "reload failed: %v\n", loadErr)
			return
		}
		fmt.Printf("graph changed: %d entities, %d relations\n", len(g.Entities), len(g.Relations))
	})
	if err != nil && err != context.Canceled {
		return err
	}

	fmt.Println("Watch stopped.")
	return nil
}

// SnapshotCmd records the current graph file as a git snapshot.
type SnapshotCmd struct {
	Message string `short:"m" default:"engram snapshot" help:"Snapshot commit message"`
}

// Run executes the snapshot command.
func (c *SnapshotCmd) Run(cli *CLI) error {
	path, err := cli.memoryPath()
	if err != nil {
		return err
	}

	hash, err := history.Commit(filepath.Dir(path), filepath.Base(path), c.Message)
	if err == history.ErrNoChanges {
		fmt.Println("No changes since last snapshot")
		return nil
	}
	if err != nil {
		return err
	}

	color.Green("✓ Snapshot %s", hash[:12])
	return nil
}

// HistoryCmd lists recorded graph snapshots.
type HistoryCmd struct {
	Limit int `short:"n" default:"10" help:"Maximum snapshots to list"`
}

// Run executes the history command.
func (c *HistoryCmd) Run(cli *CLI) error {
	path, err := cli.memoryPath()
	if err != nil {
		return err
	}

	snapshots, err := history.Log(filepath.Dir(path), c.Limit)
	if err != nil {
		return err
	}

	if len(snapshots) == 0 {
		fmt.Println("No snapshots recorded yet. Run 'engram snapshot' first.")
		return nil
	}

	for _, s := range snapshots {
		fmt.Printf("%s  %s  %s\n", s.Hash[:12], s.When.UTC().Format("2006-01-02 15:04"), s.Message)
	}
	return nil
}

// SetupCmd emits MCP client configuration for this server.
type SetupCmd struct {
	Write  bool   `help:"Write the configuration file instead of printing it"`
	Client string `default:"claude" enum:"claude,cursor" help:"Target client (claude|cursor)"`
}

// Run executes the setup command.
func (c *SetupCmd) Run(cli *CLI) error {
	config := map[string]any{
		"mcpServers": map[string]any{
			"engram": map[string]any{
				"command": "engram",
				"args":    []string{"serve"},
			},
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if !c.Write {
		fmt.Print(string(data))
		return nil
	}

	var configPath string
	switch c.Client {
	case "cursor":
		configPath = filepath.Join(".cursor", "mcp.json")
	default:
		configPath = filepath.Join(".claude", "mcp.json")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	color.Green("✓ Created %s MCP config at %s", c.Client, configPath)
	return nil
}

// Helpers

func printGraph(g *graph.KnowledgeGraph) {
	for _, e := range g.Entities {
		fmt.Printf("%s (%s)\n", e.Name, e.EntityType)
		for _, o := range e.Observations {
			fmt.Printf("  - %s\n", o)
		}
	}

	if len(g.Relations) > 0 {
		fmt.Println("\nRelations:")
		for _, r := range g.Relations {
			fmt.Printf("  %s -[%s]-> %s\n", r.From, r.RelationType, r.To)
		}
	}
}

func metadataAccessCount(e graph.Entity) int {
	if e.Metadata == nil {
		return 0
	}
	return e.Metadata.AccessCount
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	File    string           `help:"Graph file path (relative paths resolve against the executable directory)" env:"MEMORY_FILE_PATH" placeholder:"PATH"`

	// Commands
	MCP      MCPCmd      `cmd:"" help:"Start the MCP server (stdio transport)"`
	Serve    ServeCmd    `cmd:"" help:"Start the MCP server with optional file watching"`
	Read     ReadCmd     `cmd:"" help:"Dump the full graph as JSON"`
	Search   SearchCmd   `cmd:"" help:"Search entities by substring"`
	Open     OpenCmd     `cmd:"" help:"Retrieve entities by exact name"`
	Stale    StaleCmd    `cmd:"" help:"List entities that have not been updated recently"`
	Frequent FrequentCmd `cmd:"" help:"List the most-accessed entities"`
	Verify   VerifyCmd   `cmd:"" help:"Check relation integrity with repair suggestions"`
	Status   StatusCmd   `cmd:"" help:"Show graph file statistics"`
	Watch    WatchCmd    `cmd:"" help:"Report external changes to the graph file"`
	Snapshot SnapshotCmd `cmd:"" help:"Record a git snapshot of the graph file"`
	History  HistoryCmd  `cmd:"" help:"List recorded graph snapshots"`
	Setup    SetupCmd    `cmd:"" help:"Emit MCP client configuration"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("engram"),
		kong.Description("Persistent knowledge-graph memory over MCP"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return kongCtx.Run(c)
}
