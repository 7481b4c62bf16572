package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/danchu1411/taskie-cli/internal/api"
	"github.com/danchu1411/taskie-cli/internal/auth"
	"github.com/danchu1411/taskie-cli/internal/calendar"
	"github.com/danchu1411/taskie-cli/internal/config"
	"github.com/danchu1411/taskie-cli/internal/reminder"
	"github.com/danchu1411/taskie-cli/internal/stats"
	"github.com/danchu1411/taskie-cli/internal/store"
	"github.com/danchu1411/taskie-cli/internal/suggest"
	"github.com/danchu1411/taskie-cli/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "taskie",
	Short: "Task and schedule manager with AI scheduling suggestions",
	Long:  "taskie manages your Taskie tasks and schedule from the terminal, and suggests good time slots for new work using AI.",
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Open the AI suggestions wizard",
	RunE:  runSuggest,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List your tasks",
	RunE:  runTasks,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAdd,
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's schedule entries",
	RunE:  runToday,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics for accepted suggestions",
	RunE:  runStats,
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Run the reminder loop for upcoming schedule entries",
	RunE:  runRemind,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running reminder loop",
	RunE:  runStop,
}

var loginCmd = &cobra.Command{
	Use:   "login <refresh-token>",
	Short: "Store Taskie credentials",
	Long:  "Store the refresh token from the Taskie web app (Settings → API access) so the CLI can authenticate.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in Taskie account",
	RunE:  runWhoami,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

func init() {
	suggestCmd.Flags().String("title", "", "Prefill the task title")
	suggestCmd.Flags().Int("duration", 0, "Prefill the duration in minutes")
	tasksCmd.AddCommand(taskAddCmd)
	taskAddCmd.Flags().Int("duration", 0, "Estimated duration in minutes")
	statsCmd.Flags().Bool("remote", false, "Fetch server-side stats instead of local history")
	statsCmd.Flags().Int("days", 30, "How many days of local history to include")

	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(remindCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newAPIClient(cfg *config.Config) *api.Client {
	tokens := auth.NewProvider(cfg.API.BaseURL, nil)
	return api.NewClient(cfg.API.BaseURL, tokens, nil)
}

// newServices builds the engine pair once, from config. Sessions receive it
// by injection and never consult config again, so an in-flight call can
// never switch engines midway.
func newServices(cfg *config.Config) (suggest.Services, error) {
	switch cfg.AI.Engine {
	case "mock":
		return suggest.Services{
			Engine:   suggest.NewMockEngine(cfg.AI.MockSeed),
			Acceptor: suggest.NewMockAcceptor(),
		}, nil
	case "openai":
		client := newAPIClient(cfg)
		return suggest.Services{
			Engine:   suggest.NewOpenAIEngine(cfg.AI.OpenAIKey, cfg.AI.OpenAIModel, nil),
			Acceptor: suggest.NewBackendAcceptor(client, nil),
		}, nil
	case "backend":
		client := newAPIClient(cfg)
		return suggest.Services{
			Engine:   suggest.NewBackendEngine(client, nil),
			Acceptor: suggest.NewBackendAcceptor(client, nil),
		}, nil
	default:
		return suggest.Services{}, fmt.Errorf("unknown AI engine %q", cfg.AI.Engine)
	}
}

func runSuggest(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	duration, _ := cmd.Flags().GetInt("duration")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	services, err := newServices(cfg)
	if err != nil {
		return err
	}

	db, err := store.Open()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var busy []calendar.BusyWindow
	if cfg.Calendar.Enabled && cfg.Calendar.Source != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		busy, err = calendar.FetchBusy(ctx, cfg.Calendar.Source, time.Now(), time.Now().Add(14*24*time.Hour))
		cancel()
		if err != nil {
			fmt.Printf("Warning: could not load calendar: %v\n", err)
		}
	}

	session := suggest.NewSession(services, suggest.Callbacks{}, nil)
	defer session.Close()

	wizard := tui.NewWizard(session, busy, db, cfg.AI.Engine, cfg.Notifications.Enabled, title, duration, nil)
	p := tea.NewProgram(wizard)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}

	result := wizard.GetResult()
	switch {
	case result == nil || result.Canceled:
		fmt.Println("Canceled.")
	case result.ScheduleEntryID != "":
		fmt.Printf("Scheduled: entry %s created.\n", result.ScheduleEntryID)
	}
	return nil
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := newAPIClient(cfg)
	tasks, err := client.ListTasks(context.Background(), "")
	if err != nil {
		return fmt.Errorf("fetching tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}
	for _, t := range tasks {
		line := fmt.Sprintf("%-40s  %s", t.Title, t.Status)
		if t.Deadline != nil {
			line += "  due " + t.Deadline.Local().Format("Jan 2 15:04")
		}
		fmt.Println(line)
	}
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	duration, _ := cmd.Flags().GetInt("duration")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := newAPIClient(cfg)
	task, err := client.CreateTask(context.Background(), api.CreateTaskRequest{
		Title:           args[0],
		DurationMinutes: duration,
	})
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	fmt.Printf("Created task %s: %s\n", task.ID, task.Title)
	return nil
}

func runToday(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	client := newAPIClient(cfg)
	entries, err := client.ListScheduleEntries(context.Background(), startOfDay, startOfDay.Add(24*time.Hour))
	if err != nil {
		return fmt.Errorf("fetching schedule entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("Nothing scheduled today.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-40s  %3dmin  %s\n",
			e.StartAt.Local().Format("15:04"), e.Title, e.PlannedMinutes, e.Status)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	remote, _ := cmd.Flags().GetBool("remote")
	days, _ := cmd.Flags().GetInt("days")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if remote {
		client := newAPIClient(cfg)
		summary, err := client.GetStats(context.Background())
		if err != nil {
			return fmt.Errorf("fetching stats: %w", err)
		}
		fmt.Printf("Tasks: %d total, %d completed (%.0f%%)\n",
			summary.TotalTasks, summary.CompletedTasks, summary.CompletionRate*100)
		fmt.Printf("Scheduled: %dmin\n", summary.ScheduledMinutes)
		fmt.Printf("Streak: %d days\n", summary.CurrentStreak)
		return nil
	}

	db, err := store.Open()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	now := time.Now()
	entries, err := db.ListRange(now.AddDate(0, 0, -days), now.AddDate(0, 0, days))
	if err != nil {
		return fmt.Errorf("reading local history: %w", err)
	}

	fmt.Print(stats.Render(stats.Compute(entries)))
	return nil
}

func runRemind(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.Open()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return reminder.New(cfg, db, nil).Run(ctx)
}

func runStop(cmd *cobra.Command, args []string) error {
	pid, err := reminder.ReadPID()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending stop signal: %w", err)
	}

	fmt.Printf("Sent stop signal to taskie reminder (PID %d)\n", pid)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newAPIClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	user, err := client.GetUser(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\n", user.Name, user.Email)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	if err := auth.Login(args[0]); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	fmt.Println("Credentials saved.")
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	path, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(defaultConfigTOML), 0644); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	c := exec.Command(editor, path)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

var defaultConfigTOML = `[api]
base_url = "https://api.taskie.app/v1"

[ai]
# "mock" needs no credentials, "backend" uses the Taskie service,
# "openai" calls OpenAI directly.
engine = "backend"
openai_model = "gpt-4o-mini"
mock_seed = 1

[schedule]
work_start = "09:00"
work_end = "17:00"
work_days = [1, 2, 3, 4, 5]
reminder_interval_minutes = 15
reminder_lead_minutes = 10

[notifications]
enabled = true

[calendar]
enabled = false
source = ""
`
