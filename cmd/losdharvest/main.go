package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opendatazurich/losd-harvester/internal/catalog"
	"github.com/opendatazurich/losd-harvester/internal/config"
	"github.com/opendatazurich/losd-harvester/internal/db"
	"github.com/opendatazurich/losd-harvester/internal/events"
	"github.com/opendatazurich/losd-harvester/internal/harvest"
	"github.com/opendatazurich/losd-harvester/internal/migrate"
	"github.com/opendatazurich/losd-harvester/internal/server"
	"github.com/opendatazurich/losd-harvester/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "losdharvest",
	Short: "LOSD harvester CLI",
	Long: `losdharvest synchronizes a data portal with the linked open
statistical data feed of the City of Zurich. A run walks the paged views
index, maps every published dataset graph to a catalog record, and
reconciles create/update/delete/unchanged against the stored holdings.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("LOSDHARVEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(objectsCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

// withEnv opens the workspace database, migrates it, and hands a wired
// environment to fn.
func withEnv(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, conn *sql.DB) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, cfg, conn)
}

func newRunner(cfg *config.Config, conn *sql.DB) *harvest.Runner {
	cat := &catalog.SQLite{DB: conn}
	hooks := []catalog.Hook{
		catalog.SubmitResourcesHook{},
		catalog.DefaultViewsHook{},
	}
	return harvest.New(cfg, conn, cat, hooks)
}

func runCmd() *cobra.Command {
	var sourceURL string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one harvest run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, cfg *config.Config, conn *sql.DB) error {
				if sourceURL != "" {
					cfg.Source.URL = sourceURL
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				run, err := newRunner(cfg, conn).Run(ctx)
				if err != nil {
					return fmt.Errorf("run %s aborted: %w", run.ID, err)
				}
				if viper.GetBool("json") {
					return printJSON(run)
				}
				t := newTable(runHeader)
				t.AppendRow(table.Row{run.ID, run.Status, run.Created, run.Updated, run.Deleted, run.Unchanged, run.Failed, run.Skipped})
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sourceURL, "source", "", "override the source url")
	return cmd
}

var runHeader = table.Row{"ID", "STATUS", "CREATED", "UPDATED", "DELETED", "UNCHANGED", "FAILED", "SKIPPED"}

func runsCmd() *cobra.Command {
	runs := &cobra.Command{Use: "runs", Short: "Inspect harvest runs"}
	runs.AddCommand(runsListCmd())
	runs.AddCommand(runsShowCmd())
	return runs
}

func runsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List harvest runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, cfg *config.Config, conn *sql.DB) error {
				st := store.Store{DB: conn}
				runs, err := st.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(runs)
				}
				t := newTable(runHeader)
				for _, r := range runs {
					t.AppendRow(table.Row{r.ID, r.Status, r.Created, r.Updated, r.Deleted, r.Unchanged, r.Failed, r.Skipped})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	return cmd
}

func runsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its objects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, cfg *config.Config, conn *sql.DB) error {
				st := store.Store{DB: conn}
				run, err := st.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				objs, err := st.ListObjects(ctx, store.ObjectFilters{RunID: run.ID})
				if err != nil {
					return err
				}
				evts, err := events.ListByRun(ctx, conn, run.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"run": run, "objects": objs, "events": evts})
				}
				t := newTable(runHeader)
				t.AppendRow(table.Row{run.ID, run.Status, run.Created, run.Updated, run.Deleted, run.Unchanged, run.Failed, run.Skipped})
				t.Render()
				ot := newTable(table.Row{"GUID", "STATUS", "OUTCOME", "CURRENT", "ERROR"})
				for _, o := range objs {
					ot.AppendRow(table.Row{o.GUID, o.Status, o.Outcome, o.Current, o.Error})
				}
				ot.Render()
				et := newTable(table.Row{"TS", "TYPE", "GUID"})
				for _, e := range evts {
					et.AppendRow(table.Row{e.TS, e.Type, e.GUID})
				}
				et.Render()
				return nil
			})
		},
	}
	return cmd
}

func objectsCmd() *cobra.Command {
	var guid string
	var current bool
	var limit int
	cmd := &cobra.Command{
		Use:   "objects",
		Short: "List harvest objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, cfg *config.Config, conn *sql.DB) error {
				st := store.Store{DB: conn}
				objs, err := st.ListObjects(ctx, store.ObjectFilters{GUID: guid, Current: current, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(objs)
				}
				t := newTable(table.Row{"GUID", "RUN", "STATUS", "OUTCOME", "CURRENT"})
				for _, o := range objs {
					t.AppendRow(table.Row{o.GUID, o.RunID, o.Status, o.Outcome, o.Current})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&guid, "guid", "", "filter by identity key")
	cmd.Flags().BoolVar(&current, "current", false, "only current objects")
	cmd.Flags().IntVar(&limit, "limit", 50, "max objects to list")
	return cmd
}

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List stored catalog records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, cfg *config.Config, conn *sql.DB) error {
				cat := &catalog.SQLite{DB: conn}
				recs, err := cat.List(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(recs)
				}
				t := newTable(table.Row{"NAME", "TITLE", "AUTHOR", "RESOURCES", "TAGS"})
				for _, r := range recs {
					t.AppendRow(table.Row{r.Name, r.Title, r.Author, len(r.Resources), len(r.Tags)})
				}
				t.Render()
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage harvester config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default losdharvest.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the harvest control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, cfg *config.Config, conn *sql.DB) error {
				handler, err := server.New(server.Config{
					Runner: newRunner(cfg, conn),
					Store:  store.Store{DB: conn},
					Auth: server.AuthConfig{
						JWTSecret: cfg.API.JWTSecret,
						APIKeys:   cfg.API.Keys,
					},
				})
				if err != nil {
					return err
				}
				fmt.Println("listening on", addr)
				return http.ListenAndServe(addr, handler)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8484", "listen address")
	return cmd
}

func newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(header)
	return t
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
