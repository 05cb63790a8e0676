package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clipflow/internal/config"
	"clipflow/internal/db"
	"clipflow/internal/dispatch"
	"clipflow/internal/domain"
	"clipflow/internal/events"
	"clipflow/internal/jobs"
	"clipflow/internal/late"
	"clipflow/internal/migrate"
	"clipflow/internal/repo"
	"clipflow/internal/scheduler"
	"clipflow/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "clipflow",
	Short: "Clipflow CLI",
	Long: `Clipflow keeps a social posting schedule aligned with your slot configuration.
- Workspace: a directory holding schedule.json, rules.yml, and the .clipflow database.
- Schedule: per-platform, per-clip-type posting slots in your timezone.
- Realign: re-fit every scheduled remote post onto the configured slots.
- Queue: locally drafted items that get approved and then published into slots.
- Rules: priority rules that reserve slots for keyword-matched posts.`,
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
	viper.SetEnvPrefix("CLIPFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("late-api-key", "", "scheduling API key (env CLIPFLOW_LATE_API_KEY)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("late-api-key", rootCmd.PersistentFlags().Lookup("late-api-key"))
}

func registerCommands() {
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(realignCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(approveCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "schedule", Short: "Manage the slot schedule"}
	cmd.AddCommand(scheduleShowCmd())
	cmd.AddCommand(scheduleInitCmd())
	cmd.AddCommand(scheduleValidateCmd())
	return cmd
}

func scheduleShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the schedule configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(sc)
		},
	}
	return cmd
}

func scheduleInitCmd() *cobra.Command {
	var timezone string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter schedule.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(timezone)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing file")
	return cmd
}

func scheduleValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate schedule.json and rules.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			sc, err := config.FromFile(config.Path(workspace))
			if err != nil {
				return err
			}
			if err := sc.Validate(); err != nil {
				return err
			}
			rules, err := config.LoadRules(config.RulesPath(workspace))
			if err != nil {
				return err
			}
			fmt.Printf("OK: %d platform(s), %d priority rule(s)\n", len(sc.Platforms), len(rules))
			return nil
		},
	}
	return cmd
}

func realignCmd() *cobra.Command {
	var prioritized, dryRun bool
	var seed int64
	var intervalMS int
	cmd := &cobra.Command{
		Use:   "realign",
		Short: "Re-fit scheduled remote posts onto the configured slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				workspace := viper.GetString("workspace")
				sc, err := config.Load(workspace)
				if err != nil {
					return err
				}
				rules, err := config.LoadRules(config.RulesPath(workspace))
				if err != nil {
					return err
				}
				client, err := lateClient()
				if err != nil {
					return err
				}
				realigner := &scheduler.Realigner{
					Remote:   client,
					Store:    r,
					Schedule: sc,
					Rules:    rules,
					Interval: time.Duration(intervalMS) * time.Millisecond,
					Logger:   newLogger(),
				}
				if cmd.Flags().Changed("seed") {
					realigner.Rand = rand.New(rand.NewSource(seed))
				}
				plan, err := realigner.BuildPlan(ctx, prioritized)
				if err != nil {
					return err
				}
				printPlan(plan)
				if dryRun {
					return nil
				}
				res := realigner.Execute(ctx, plan, func(completed, total int, phase string) {
					fmt.Printf("\r%s %d/%d", phase, completed, total)
				})
				fmt.Println()
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().BoolVar(&prioritized, "prioritized", false, "apply priority rules from rules.yml")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan only, do not call the scheduling API")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for reproducible prioritized plans")
	cmd.Flags().IntVar(&intervalMS, "interval", int(scheduler.DefaultCallInterval/time.Millisecond), "milliseconds between API calls")
	return cmd
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "queue", Short: "Manage the local content queue"}
	cmd.AddCommand(queueListCmd())
	cmd.AddCommand(queueCreateCmd())
	cmd.AddCommand(queueApproveCmd())
	cmd.AddCommand(queueRejectCmd())
	return cmd
}

func queueListCmd() *cobra.Command {
	var status, platform string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListItems(ctx, status, config.CanonicalPlatform(platform))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Platform", "Clip Type", "Status", "Scheduled For", "Content"})
				for _, it := range items {
					scheduled := ""
					if it.ScheduledFor != nil {
						scheduled = *it.ScheduledFor
					}
					tw.AppendRow(table.Row{it.ID, it.Platform, it.ClipType, it.Status, scheduled, truncate(it.PostContent, 40)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&platform, "platform", "", "filter by platform")
	return cmd
}

func queueCreateCmd() *cobra.Command {
	var platform, clipType, content, mediaPath, accountID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a queue item",
		RunE: func(cmd *cobra.Command, args []string) error {
			if platform == "" || content == "" {
				return fmt.Errorf("--platform and --content required")
			}
			if !domain.ValidClipType(clipType) {
				return fmt.Errorf("invalid clip type %q (short, medium-clip, video)", clipType)
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				now := time.Now().UTC().Format(time.RFC3339)
				it := domain.QueueItem{
					ID:              uuid.New().String(),
					Platform:        config.CanonicalPlatform(platform),
					ClipType:        domain.ClipType(clipType),
					PostContent:     content,
					SourceMediaPath: mediaPath,
					AccountID:       accountID,
					Status:          "pending",
					CreatedAt:       now,
					UpdatedAt:       now,
				}
				if err := r.InsertItem(ctx, it); err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "target platform")
	cmd.Flags().StringVar(&clipType, "clip-type", "short", "clip type (short, medium-clip, video)")
	cmd.Flags().StringVar(&content, "content", "", "post content")
	cmd.Flags().StringVar(&mediaPath, "media", "", "local media file path")
	cmd.Flags().StringVar(&accountID, "account", "", "platform account id override")
	return cmd
}

func queueApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.SetItemStatus(ctx, args[0], "approved", ""); err != nil {
					return err
				}
				it, err := r.GetItem(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	return cmd
}

func queueRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.SetItemStatus(ctx, args[0], "rejected", reason); err != nil {
					return err
				}
				it, err := r.GetItem(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func approveCmd() *cobra.Command {
	var intervalMS int
	cmd := &cobra.Command{
		Use:   "approve [id...]",
		Short: "Publish approved queue items into schedule slots",
		Long:  "Dispatches approved items to the scheduling API, one slot each. With no arguments, every approved item is dispatched in queue order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				workspace := viper.GetString("workspace")
				client, err := lateClient()
				if err != nil {
					return err
				}
				itemIDs := args
				if len(itemIDs) == 0 {
					approved, err := r.ListItems(ctx, "approved", "")
					if err != nil {
						return err
					}
					for _, it := range approved {
						itemIDs = append(itemIDs, it.ID)
					}
				}
				if len(itemIDs) == 0 {
					fmt.Println("Nothing approved to dispatch.")
					return nil
				}
				d := dispatch.New(client, r, func() (*config.ScheduleConfig, error) {
					return config.Load(workspace)
				},
					dispatch.WithAuditor(events.Writer{DB: r.DB}),
					dispatch.WithLogger(newLogger()),
					dispatch.WithCallInterval(time.Duration(intervalMS)*time.Millisecond),
				)
				d.Start(ctx)
				res, err := d.Dispatch(ctx, itemIDs, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().IntVar(&intervalMS, "interval", int(dispatch.DefaultCallInterval/time.Millisecond), "milliseconds between API calls")
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyRevokeCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				plaintext := uuid.New().String() + uuid.New().String()
				key := domain.APIKey{
					ID:      uuid.New().String(),
					ActorID: actorID,
					Name:    name,
					KeyHash: repo.HashAPIKey(plaintext),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				fmt.Printf("API key created (store it now, it is not retrievable later):\n%s\n", plaintext)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor id")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Event log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				latest, err := r.LatestEventID(ctx)
				if err != nil {
					return err
				}
				cursor := latest - int64(n)
				if cursor < 0 {
					cursor = 0
				}
				evts, err := r.EventsAfter(ctx, n, cursor)
				if err != nil {
					return err
				}
				return printJSONOrTable(evts)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var intervalMS int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
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
			r := repo.Repo{DB: conn}
			logger := newLogger()
			client, err := lateClient()
			if err != nil {
				return err
			}
			interval := time.Duration(intervalMS) * time.Millisecond
			writer := events.Writer{DB: conn}
			dispatcher := dispatch.New(client, r, func() (*config.ScheduleConfig, error) {
				return config.Load(workspace)
			},
				dispatch.WithAuditor(writer),
				dispatch.WithLogger(logger),
				dispatch.WithCallInterval(interval),
			)
			dispatcher.Start(cmd.Context())

			authCfg := server.AuthConfig{JWTSecret: os.Getenv("CLIPFLOW_JWT_SECRET"), Logger: logger}
			if authCfg.JWTSecret == "" {
				authCfg.AllowAnonymous = true
				logger.Warn("CLIPFLOW_JWT_SECRET not set; serving without authentication")
			}
			handler, err := server.New(server.Config{
				Repo:       r,
				Events:     writer,
				Jobs:       jobs.NewStore(),
				Dispatcher: dispatcher,
				Remote:     client,
				Workspace:  workspace,
				Interval:   interval,
				BasePath:   basePath,
				Auth:       authCfg,
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Clipflow API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().IntVar(&intervalMS, "interval", int(scheduler.DefaultCallInterval/time.Millisecond), "milliseconds between API calls")
	return cmd
}

// --- helpers ---

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func lateClient() (*late.Client, error) {
	key := viper.GetString("late-api-key")
	if key == "" {
		return nil, fmt.Errorf("scheduling API key required (set CLIPFLOW_LATE_API_KEY or --late-api-key)")
	}
	return late.NewClient(key), nil
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("CLIPFLOW_LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func printPlan(plan domain.RealignPlan) {
	if viper.GetBool("json") {
		_ = printJSON(plan)
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Post", "Platform", "Clip Type", "Old", "New"})
	for _, p := range plan.Posts {
		old := ""
		if p.OldScheduledFor != nil {
			old = p.OldScheduledFor.Format(time.RFC3339)
		}
		tw.AppendRow(table.Row{p.Post.ID, p.Platform, p.ClipType, old, p.NewScheduledFor.Format(time.RFC3339)})
	}
	tw.Render()
	if len(plan.ToCancel) > 0 {
		cw := table.NewWriter()
		cw.SetOutputMirror(os.Stdout)
		cw.AppendHeader(table.Row{"Post", "Platform", "Reason"})
		for _, c := range plan.ToCancel {
			cw.AppendRow(table.Row{c.Post.ID, c.Platform, c.Reason})
		}
		cw.Render()
	}
	fmt.Printf("Fetched %d, rescheduling %d, cancelling %d, skipped %d, unmatched %d (id-matched %d, content-matched %d)\n",
		plan.TotalFetched, len(plan.Posts), len(plan.ToCancel), plan.Skipped, plan.Unmatched, plan.IDMatched, plan.ContentMatched)
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

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
