package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/app"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "vantagectl",
	Short: "Inspect and operate team coverage from the terminal",
	Long: `vantagectl works directly against the coverage database.
It reconciles time-off windows, lists the roster and open tasks, regenerates
reassignment suggestions and runs the chat time-off ingestor.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("VANTAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "path to config.yaml")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands(root *cobra.Command) {
	root.AddCommand(membersCmd(), tasksCmd(), suggestCmd(), timeOffCmd(), gmailCmd(), reconcileCmd(), seedCmd())
}

// withApp loads config, opens the database and runs fn. Suggestion jobs run
// in-process and are drained before the database closes.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(viper.GetString("log-level"))
	cfg.Log.Level = viper.GetString("log-level")

	a, err := app.New(cfg, app.Options{InlineQueue: true})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func membersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "Reconcile time off and list the roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				members, err := a.Members.List(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), members)
				}
				renderMembers(cmd.OutOrStdout(), members)
				return nil
			})
		},
	}
}

func tasksCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks with their ranked suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tasks, err := a.Tasks.List(ctx, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), tasks)
				}
				renderTasks(cmd.OutOrStdout(), tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (at-risk, unassigned, covered)")
	return cmd
}

func suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <task-id>",
		Short: "Regenerate suggestions for a task and print them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				task, err := a.Tasks.Regenerate(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), task)
				}
				renderSuggestions(cmd.OutOrStdout(), task)
				return nil
			})
		},
	}
}

func timeOffCmd() *cobra.Command {
	var hours, limit int
	parent := &cobra.Command{Use: "timeoff", Short: "Scan chat history for time-off notices"}
	parent.PersistentFlags().IntVar(&hours, "hours", 24, "hours of history to scan (1-720)")
	parent.PersistentFlags().IntVar(&limit, "limit", 100, "maximum messages to fetch (1-999)")

	check := func() error {
		if hours < 1 || hours > 720 {
			return fmt.Errorf("--hours must be between 1 and 720")
		}
		if limit < 1 || limit > 999 {
			return fmt.Errorf("--limit must be between 1 and 999")
		}
		return nil
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Ingest recent messages and apply detected time off",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := check(); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				result, err := a.TimeOff.Sync(ctx, hours, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), result)
				}
				renderSyncResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	debug := &cobra.Command{
		Use:   "debug",
		Short: "Show the decision for each message without writing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := check(); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				traces, err := a.TimeOff.DebugSync(ctx, hours, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), traces)
				}
				renderTraces(cmd.OutOrStdout(), traces)
				return nil
			})
		},
	}
	parent.AddCommand(sync, debug)
	return parent
}

func gmailCmd() *cobra.Command {
	var maxResults int
	parent := &cobra.Command{Use: "gmail", Short: "Scan the mailbox for out-of-office emails"}
	parent.PersistentFlags().IntVar(&maxResults, "max-results", 100, "maximum emails to read (1-500)")

	check := func() error {
		if maxResults < 1 || maxResults > 500 {
			return fmt.Errorf("--max-results must be between 1 and 500")
		}
		return nil
	}

	scan := &cobra.Command{
		Use:   "scan",
		Short: "Apply time off found in matching emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := check(); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				result, err := a.TimeOff.ScanGmail(ctx, maxResults)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), result)
				}
				renderSyncResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	debug := &cobra.Command{
		Use:   "debug",
		Short: "Show the decision for each email without writing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := check(); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.TimeOff.DebugGmail(ctx, maxResults)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), out)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d emails found for %s\n", out.EmailsFound, out.SearchQuery)
				renderTraces(cmd.OutOrStdout(), out.Emails)
				return nil
			})
		},
	}
	parent.AddCommand(scan, debug)
	return parent
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Activate and expire time-off windows for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				result, err := a.Availability.Reconcile(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), result)
				}
				renderReconcile(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo roster and tasks into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				result, err := models.Seed(a.DB.WithContext(ctx), timeNow())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), result)
				}
				if result.Skipped {
					fmt.Fprintln(cmd.OutOrStdout(), "database already has members; nothing seeded")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d members and %d tasks\n", result.Members, result.Tasks)
				return nil
			})
		},
	}
}
