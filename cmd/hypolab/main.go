package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	hypolabsdk "hypolab/sdk/go"

	"hypolab/internal/app"
	"hypolab/internal/bus"
	"hypolab/internal/config"
	"hypolab/internal/db"
	"hypolab/internal/events"
	"hypolab/internal/migrate"
	"hypolab/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "hypolab",
	Short: "Hypolab CLI",
	Long: `Hypolab tracks AI hypotheses from ideation to production.
- Hypotheses move through ordered stages; inactive stages reject moves.
- Experiments, comments and presentations hang off a hypothesis.
- Every change is broadcast to connected clients over a websocket.
- The optional journal keeps a durable log of broadcast events; view it with 'hypolab log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HYPOLAB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (defaults to <workspace>/hypolab.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("url", "http://127.0.0.1:8080", "server URL for remote commands")
	rootCmd.PersistentFlags().String("token", "", "bearer token for remote commands")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(hypothesisCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var journal bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			if cmd.Flags().Changed("journal") {
				cfg.Journal.Enabled = journal
			}
			if secret := viper.GetString("jwt_secret"); secret != "" {
				cfg.Auth.JWTSecret = secret
			}
			a, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			a.ConfigPath = configFile()
			fmt.Printf("Serving Hypolab API on http://%s%s (websocket at %s, OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.WSPath, cfg.Server.BasePath)
			return a.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	cmd.Flags().BoolVar(&journal, "journal", false, "record broadcast events in the workspace database")
	return cmd
}

func watchCmd() *cobra.Command {
	var kinds []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live events from a server",
		Long:  "Connects an event bus to the server websocket and prints every event, including the dashboard and kanban refresh signals derived locally. Reconnects after a fixed delay.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b := bus.New()
			asJSON := viper.GetBool("json")
			for _, k := range watchedKinds(kinds) {
				b.On(k, func(ev events.Event) { printEvent(ev, asJSON) })
			}
			settings := bus.DefaultClientSettings()
			settings.ReconnectDelay = time.Duration(cfg.Bus.ReconnectDelaySeconds) * time.Second
			client := bus.NewClient(wsURL(viper.GetString("url"), cfg.Server.WSPath), b, settings)
			return client.Run(cmd.Context())
		},
	}
	cmd.Flags().StringSliceVar(&kinds, "type", nil, "event types to print (default all)")
	return cmd
}

func watchedKinds(filter []string) []events.Kind {
	if len(filter) == 0 {
		all := events.Kinds()
		sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
		return all
	}
	out := make([]events.Kind, 0, len(filter))
	for _, f := range filter {
		if k := events.Kind(strings.TrimSpace(f)); events.Known(k) {
			out = append(out, k)
		}
	}
	return out
}

func wsURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + path
}

func printEvent(ev events.Event, asJSON bool) {
	if asJSON {
		data, err := events.Encode(ev)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println(string(data))
		return
	}
	fmt.Printf("%s  %s\n", time.Now().Format(time.TimeOnly), ev.Kind())
}

func hypothesisCmd() *cobra.Command {
	h := &cobra.Command{
		Use:     "hypothesis",
		Aliases: []string{"hyp"},
		Short:   "Manage hypotheses on a running server",
	}
	h.AddCommand(hypothesisListCmd())
	h.AddCommand(hypothesisCreateCmd())
	h.AddCommand(hypothesisMoveCmd())
	return h
}

func hypothesisListCmd() *cobra.Command {
	var q hypolabsdk.HypothesisQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List hypotheses",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := sdkClient().ListHypotheses(cmd.Context(), q)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(page)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Title", "Stage", "Priority", "Status", "Owner"})
			for _, h := range page.Data {
				tw.AppendRow(table.Row{h.ID, h.Title, h.Stage, h.Priority, h.Status, h.Owner})
			}
			tw.AppendFooter(table.Row{"", fmt.Sprintf("page %d/%d", page.Pagination.Page, page.Pagination.TotalPages), "", "", "total", page.Pagination.Total})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Search, "search", "", "search title and description")
	cmd.Flags().StringVar(&q.Stage, "stage", "", "stage filter")
	cmd.Flags().StringVar(&q.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&q.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&q.Owner, "owner", "", "owner filter")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.Limit, "limit", 10, "page size")
	return cmd
}

func hypothesisCreateCmd() *cobra.Command {
	var in hypolabsdk.NewHypothesis
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create hypothesis",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Title == "" || in.Description == "" {
				return fmt.Errorf("--title and --description required")
			}
			h, err := sdkClient().CreateHypothesis(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSONOrTable(h)
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&in.Stage, "stage", "", "initial stage (default ideation)")
	cmd.Flags().StringVar(&in.Priority, "priority", "", "priority (default from settings)")
	cmd.Flags().StringVar(&in.Owner, "owner", "", "owner")
	cmd.Flags().StringVar(&in.Team, "team", "", "team")
	cmd.Flags().StringSliceVar(&in.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().Float64Var(&in.EstimatedValue, "value", 0, "estimated value")
	cmd.Flags().IntVar(&in.Confidence, "confidence", 0, "confidence 0-100")
	return cmd
}

func hypothesisMoveCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "move <id> <stage>",
		Short: "Move hypothesis to another stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := sdkClient().MoveHypothesis(cmd.Context(), args[0], args[1], comment)
			if err != nil {
				return err
			}
			return printJSONOrTable(h)
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "comment recorded with the move")
	return cmd
}

func stageCmd() *cobra.Command {
	st := &cobra.Command{Use: "stage", Short: "Inspect pipeline stages"}
	st.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stages in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			stages, err := sdkClient().Stages(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(stages)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"#", "ID", "Code", "Name", "Active", "Approval"})
			for _, s := range stages {
				tw.AppendRow(table.Row{s.Order, s.ID, s.Code, s.Name, s.IsActive, s.RequiresApproval})
			}
			tw.Render()
			return nil
		},
	})
	return st
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event journal",
		Long:  "The durable record of every broadcast event, kept when the journal is enabled.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	var remote bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail journaled events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				page, err := sdkClient().EventsPage(cmd.Context(), n, "", evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(page.Items)
				}
				tw := eventTable()
				for _, e := range page.Items {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.UID})
				}
				tw.Render()
				return nil
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.LatestEvents(ctx, n, 0, evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := eventTable()
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.UID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().BoolVar(&remote, "remote", false, "read from the server at --url instead of the workspace database")
	return cmd
}

func eventTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "TS", "Type", "UID"})
	return tw
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage hypolab.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.MkdirAll(workspace, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			return yaml.NewEncoder(os.Stdout).Encode(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	workspace := viper.GetString("workspace")
	cfg, err := app.ResolveConfig(workspace, viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if cfg.Journal.Workspace == "" || cfg.Journal.Workspace == "." {
		cfg.Journal.Workspace = workspace
	}
	return cfg, nil
}

// configFile returns the file serve should watch, or "" when running on
// built-in defaults.
func configFile() string {
	if p := viper.GetString("config"); p != "" {
		return p
	}
	p := config.Path(viper.GetString("workspace"))
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func sdkClient() *hypolabsdk.Client {
	c := hypolabsdk.New(viper.GetString("url"))
	c.BearerToken = viper.GetString("token")
	if cfg, err := loadConfig(); err == nil {
		c.BasePath = cfg.Server.BasePath
	}
	return c
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	workspace := cfg.Journal.Workspace
	if _, err := os.Stat(db.Path(workspace)); err != nil {
		return fmt.Errorf("no journal at %s; start the server with --journal", db.Path(workspace))
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(ctx, conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
