package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"launchboard/internal/app"
	"launchboard/internal/config"
	"launchboard/internal/digest"
	"launchboard/internal/domain"
	"launchboard/internal/engine"
	"launchboard/internal/events"
	"launchboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "lb",
	Short: "Launchboard CLI",
	Long: `Launchboard tracks a product launch: workstreams of tasks, the team, and the
milestones leading to launch day.
- Workspace: a directory holding launchboard.yml and, for the sqlite driver, the .launchboard state.
- Tasks: belong to one workstream; status is not-started, in-progress, urgent or completed.
- Milestones: dated checkpoints; critical ones raise alerts as they approach.
- Activity log: every change, newest first, view with 'lb log tail'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	workspace := viper.GetString("workspace")
	if err := godotenv.Load(filepath.Join(workspace, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: load .env:", err)
	}
	viper.SetEnvPrefix("LAUNCHBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/launchboard.yml)")
	rootCmd.PersistentFlags().String("storage", "", "storage driver override: sqlite, redis or memory")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("storage.driver", rootCmd.PersistentFlags().Lookup("storage"))
}

func registerCommands() {
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(workstreamCmd())
	rootCmd.AddCommand(milestoneCmd())
	rootCmd.AddCommand(deadlinesCmd())
	rootCmd.AddCommand(overdueCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show launch status",
		Long:  "The scoreboard: overall progress, task counts, days to launch and per-workstream progress.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				e := a.Engine
				snap := e.Snapshot()
				stats := e.Stats()
				days, hasLaunch := e.DaysToLaunch()
				summaries := e.WorkstreamSummaries()
				if viper.GetBool("json") {
					out := map[string]any{
						"project":     snap.Name,
						"launchDate":  snap.LaunchDate,
						"stats":       stats,
						"workstreams": summaries,
					}
					if hasLaunch {
						out["daysLeft"] = days
					}
					return printJSON(out)
				}
				fmt.Printf("Project: %s\n", snap.Name)
				if hasLaunch {
					fmt.Printf("Launch: %s (%d days left)\n", snap.LaunchDate, days)
				}
				fmt.Printf("Overall progress: %d%%\n", stats.OverallProgress)
				fmt.Printf("Tasks: %d total, %d completed, %d in progress, %d open critical\n",
					stats.TotalTasks, stats.CompletedTasks, stats.InProgressTasks, stats.OpenCriticalTasks)
				tw := newTable()
				tw.AppendHeader(table.Row{"Workstream", "Tasks", "Done", "Progress"})
				for _, s := range summaries {
					tw.AppendRow(table.Row{s.Name, s.TaskCount, s.CompletedCount, fmt.Sprintf("%d%%", s.Progress)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter domain.Status
			if status != "" {
				filter = domain.Status(status)
				if !filter.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tasks := a.Engine.AllTasks()
				if filter != "" {
					tasks = a.Engine.TasksByStatus(filter)
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				printTasks(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, ok := a.Engine.TaskByID(args[0])
				if !ok {
					return fmt.Errorf("task %s: %w", args[0], engine.ErrNotFound)
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Printf("%s  %s\n", t.ID, t.Title)
				fmt.Printf("Workstream: %s\n", t.WorkstreamName)
				fmt.Printf("Status: %s  Priority: %s  Progress: %d%%\n", t.Status, t.Priority, t.Progress)
				fmt.Printf("Due: %s\n", t.DueDate)
				fmt.Printf("Assignees: %s\n", strings.Join(t.Assignees, ", "))
				if t.Description != "" {
					fmt.Println(t.Description)
				}
				for _, st := range t.Subtasks {
					mark := " "
					if st.Completed {
						mark = "x"
					}
					fmt.Printf("  [%s] %s %s\n", mark, st.ID, st.Title)
				}
				return nil
			})
		},
	}
	return cmd
}

func taskAddCmd() *cobra.Command {
	var workstream string
	var t domain.Task
	var status, priority string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task to a workstream",
		RunE: func(cmd *cobra.Command, args []string) error {
			t.Status = domain.Status(status)
			t.Priority = domain.Priority(priority)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.AddTask(ctx, workstream, t); err != nil {
					return err
				}
				ref, _ := a.Engine.TaskByID(t.ID)
				return printJSONOrTable(ref)
			})
		},
	}
	cmd.Flags().StringVar(&workstream, "workstream", "", "workstream id")
	cmd.Flags().StringVar(&t.ID, "id", "", "task id")
	cmd.Flags().StringVar(&t.Title, "title", "", "task title")
	cmd.Flags().StringVar(&status, "status", "", "status (default not-started)")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (default medium)")
	cmd.Flags().StringVar(&t.DueDate, "due", "", "due date YYYY-MM-DD")
	cmd.Flags().StringArrayVar(&t.Assignees, "assignee", nil, "assignee name (repeatable)")
	cmd.Flags().IntVar(&t.Progress, "progress", 0, "progress 0-100")
	cmd.Flags().StringVar(&t.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("workstream")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, status, priority, due, description string
	var assignees []string
	var progress int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch domain.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("status") {
				s := domain.Status(status)
				patch.Status = &s
			}
			if flags.Changed("priority") {
				p := domain.Priority(priority)
				patch.Priority = &p
			}
			if flags.Changed("due") {
				patch.DueDate = &due
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("progress") {
				patch.Progress = &progress
			}
			if flags.Changed("assignee") {
				patch.Assignees = assignees
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.UpdateTask(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&due, "due", "", "new due date YYYY-MM-DD")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().IntVar(&progress, "progress", 0, "new progress (clamped to 0-100)")
	cmd.Flags().StringArrayVar(&assignees, "assignee", nil, "replace assignees (repeatable)")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeleteTask(ctx, args[0]); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"deleted": args[0]})
				}
				fmt.Printf("deleted %s\n", args[0])
				return nil
			})
		},
	}
	return cmd
}

func workstreamCmd() *cobra.Command {
	ws := &cobra.Command{Use: "workstream", Short: "Inspect workstreams"}
	ws.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List workstreams with progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				summaries := a.Engine.WorkstreamSummaries()
				if viper.GetBool("json") {
					return printJSON(summaries)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Tasks", "Done", "Progress"})
				for _, s := range summaries {
					tw.AppendRow(table.Row{s.ID, s.Name, s.TaskCount, s.CompletedCount, fmt.Sprintf("%d%%", s.Progress)})
				}
				tw.Render()
				return nil
			})
		},
	})
	ws.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a workstream and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				w, ok := a.Engine.WorkstreamByID(args[0])
				if !ok {
					return fmt.Errorf("workstream %s: %w", args[0], engine.ErrNotFound)
				}
				if viper.GetBool("json") {
					return printJSON(w)
				}
				fmt.Printf("%s (%s)\n", w.Name, w.ID)
				fmt.Printf("Leads: %s\n", strings.Join(w.Leads, ", "))
				if w.Description != "" {
					fmt.Println(w.Description)
				}
				refs := make([]domain.TaskRef, len(w.Tasks))
				for i, t := range w.Tasks {
					refs[i] = domain.NewTaskRef(t, w)
				}
				printTasks(refs)
				return nil
			})
		},
	})
	return ws
}

func milestoneCmd() *cobra.Command {
	ms := &cobra.Command{Use: "milestone", Short: "Manage milestones"}
	ms.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List milestones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items := a.Engine.Snapshot().Milestones
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Title", "Date", "Owner", "Status", "Critical"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.Title, m.Date, m.Owner, m.Status, m.Critical})
				}
				tw.Render()
				return nil
			})
		},
	})
	ms.AddCommand(milestoneUpdateCmd())
	ms.AddCommand(&cobra.Command{
		Use:   "alerts",
		Short: "Classify critical milestones against today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				alerts := a.Engine.MilestoneAlerts()
				if viper.GetBool("json") {
					return printJSON(alerts)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Title", "Date", "State", "Days"})
				for _, al := range alerts {
					tw.AppendRow(table.Row{al.Milestone.ID, al.Milestone.Title, al.Milestone.Date, al.State, al.DaysUntil})
				}
				tw.Render()
				return nil
			})
		},
	})
	return ms
}

func milestoneUpdateCmd() *cobra.Command {
	var title, date, owner, status string
	var critical bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update milestone fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch domain.MilestonePatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("date") {
				patch.Date = &date
			}
			if flags.Changed("owner") {
				patch.Owner = &owner
			}
			if flags.Changed("status") {
				patch.Status = &status
			}
			if flags.Changed("critical") {
				patch.Critical = &critical
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				m, err := a.Engine.UpdateMilestone(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&date, "date", "", "new date YYYY-MM-DD")
	cmd.Flags().StringVar(&owner, "owner", "", "new owner")
	cmd.Flags().StringVar(&status, "status", "", "completed or pending")
	cmd.Flags().BoolVar(&critical, "critical", false, "mark critical")
	return cmd
}

func deadlinesCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "deadlines",
		Short: "Tasks due within a window of days, soonest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				window := days
				if !cmd.Flags().Changed("days") {
					window = a.Config.Deadlines.WindowDays
				}
				return printUpcoming(a.Engine.UpcomingDeadlines(window))
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "window in days (default from config)")
	return cmd
}

func overdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "Incomplete tasks past their due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return printUpcoming(a.Engine.OverdueTasks())
			})
		},
	}
}

func teamCmd() *cobra.Command {
	team := &cobra.Command{Use: "team", Short: "Inspect the team"}
	team.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List team members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				members := a.Engine.Snapshot().Team
				if viper.GetBool("json") {
					return printJSON(members)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Role"})
				for _, m := range members {
					tw.AppendRow(table.Row{m.ID, m.Name, m.Role})
				}
				tw.Render()
				return nil
			})
		},
	})
	team.AddCommand(&cobra.Command{
		Use:   "tasks <member-id>",
		Short: "Tasks assigned to a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				summary, ok := a.Engine.TasksForMember(args[0])
				if !ok {
					return fmt.Errorf("team member %s: %w", args[0], engine.ErrNotFound)
				}
				if viper.GetBool("json") {
					return printJSON(summary)
				}
				fmt.Printf("%s (%s): %d tasks, %d completed, %d%% progress\n",
					summary.Member.Name, summary.Member.Role, len(summary.Tasks), summary.CompletedCount, summary.Progress)
				printTasks(summary.Tasks)
				return nil
			})
		},
	})
	return team
}

func logCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "log",
		Short: "Activity log",
		Long:  "Every task and milestone change, newest first.",
	}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var workstream, action string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := events.Filter{Workstream: workstream, Action: events.Action(action), Limit: n}
			if f.Action != "" && !f.Action.Valid() {
				return fmt.Errorf("unknown action %q", action)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				entries := a.Engine.ActivityFor(f)
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				printActivity(entries)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "n", "n", 20, "number of entries (0 for all)")
	cmd.Flags().StringVar(&workstream, "workstream", "", "workstream name filter")
	cmd.Flags().StringVar(&action, "action", "", "action filter: task_created, task_updated, task_deleted or milestone_updated")
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the seed project and clear the activity log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.ResetToDefault(ctx); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"reset": true})
				}
				fmt.Println("project reset to seed data")
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Workspace config",
		Long:  "launchboard.yml selects the storage backend, activity log cap, deadline window and digest schedule.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			b, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Print(string(b))
			return nil
		},
	})
	return cfg
}

func configInitCmd() *cobra.Command {
	var name string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default launchboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(name)), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(os.Stderr, "", log.LstdFlags)
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			a, err := app.Open(cmd.Context(), viper.GetString("workspace"), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			handler, err := server.New(server.Config{
				Engine:     a.Engine,
				BasePath:   basePath,
				WindowDays: cfg.Deadlines.WindowDays,
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			if spec := cfg.Digest.Schedule; spec != "" {
				sched := digest.NewScheduler(a.Engine, cfg.Deadlines.WindowDays, logger)
				if err := sched.Start(spec); err != nil {
					return err
				}
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					sched.Stop(ctx)
				}()
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Launchboard API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs)\n", addr, basePath, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

// resolveConfig reads --config or the workspace launchboard.yml, then applies
// LAUNCHBOARD_* overrides.
func resolveConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := viper.GetString("config"); path != "" {
		cfg, err = config.FromFile(path)
	} else {
		cfg, err = config.LoadOptional(viper.GetString("workspace"))
	}
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("storage.driver"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := viper.GetString("storage.redis_addr"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if viper.IsSet("activity.max_entries") {
		cfg.Activity.MaxEntries = viper.GetInt("activity.max_entries")
	}
	if viper.IsSet("deadlines.window_days") {
		cfg.Deadlines.WindowDays = viper.GetInt("deadlines.window_days")
	}
	if viper.IsSet("digest.schedule") {
		cfg.Digest.Schedule = viper.GetString("digest.schedule")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, viper.GetString("workspace"), cfg, log.New(os.Stderr, "", 0))
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	closeErr := a.Close(ctx)
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printTasks(tasks []domain.TaskRef) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Title", "Workstream", "Status", "Priority", "Due", "Progress", "Assignees"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Title, t.WorkstreamName, t.Status, t.Priority, t.DueDate, fmt.Sprintf("%d%%", t.Progress), strings.Join(t.Assignees, ", ")})
	}
	tw.Render()
}

func printUpcoming(tasks []domain.UpcomingTask) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Title", "Workstream", "Due", "Days", "Status"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Title, t.WorkstreamName, t.DueDate, t.DaysUntilDue, t.Status})
	}
	tw.Render()
	return nil
}

func printActivity(entries []events.Entry) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Time", "Action", "Subject", "Workstream", "Changes"})
	for _, en := range entries {
		tw.AppendRow(table.Row{en.Timestamp, en.Action, en.Subject(), en.Workstream, strings.Join(en.Changes, "; ")})
	}
	tw.Render()
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
