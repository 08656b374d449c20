package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mordomohq/mordomo/action"
	"github.com/mordomohq/mordomo/bus"
	"github.com/mordomohq/mordomo/config"
	"github.com/mordomohq/mordomo/homeassistant"
	"github.com/mordomohq/mordomo/scheduler"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage scheduled jobs",
	Long:  "List, add, remove, enable, disable, and run the jobs persisted in the job store.",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all jobs",
	RunE:  runJobsList,
}

var jobsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a job",
	Long: `Add a new job to the store.

Examples:
  mordomo jobs add --cron "0 7 * * *" --description "Morning report" \
    --actions '[{"action":"get_house_summary"}]'
  mordomo jobs add --cron "30 22 * * 1-5" --description "Lights out" \
    --actions @lights-out.json --one-shot`,
	RunE: runJobsAdd,
}

var jobsRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a job by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRemove,
}

var jobsEnableCmd = &cobra.Command{
	Use:   "enable [id]",
	Short: "Enable a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsEnable,
}

var jobsDisableCmd = &cobra.Command{
	Use:   "disable [id]",
	Short: "Disable a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsDisable,
}

var jobsRunCmd = &cobra.Command{
	Use:   "run [id]",
	Short: "Run a job immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRun,
}

var (
	jobsAddCron        string
	jobsAddDescription string
	jobsAddActions     string
	jobsAddOneShot     bool
	jobsAddCreatedBy   string
)

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsAddCmd)
	jobsCmd.AddCommand(jobsRemoveCmd)
	jobsCmd.AddCommand(jobsEnableCmd)
	jobsCmd.AddCommand(jobsDisableCmd)
	jobsCmd.AddCommand(jobsRunCmd)

	jobsAddCmd.Flags().StringVar(&jobsAddCron, "cron", "", "Cron expression (e.g., '0 7 * * *')")
	jobsAddCmd.Flags().StringVar(&jobsAddDescription, "description", "", "Job description")
	jobsAddCmd.Flags().StringVar(&jobsAddActions, "actions", "", "Action list as JSON, or @file to read from a file")
	jobsAddCmd.Flags().BoolVar(&jobsAddOneShot, "one-shot", false, "Remove the job after its first firing")
	jobsAddCmd.Flags().StringVar(&jobsAddCreatedBy, "created-by", "cli", "Origin recorded on the job")
	_ = jobsAddCmd.MarkFlagRequired("cron")
}

func loadConfigOrDefault() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

// cliRuntime holds the pieces a one-shot CLI invocation needs: a
// scheduler over the configured store and an executor wired to the
// configured Home Assistant instance.
type cliRuntime struct {
	cfg  *config.Config
	bus  *bus.Bus
	jobs *scheduler.Scheduler
}

func openRuntime() (*cliRuntime, error) {
	cfg := loadConfigOrDefault()
	storePath, err := cfg.JobStorePath()
	if err != nil {
		return nil, err
	}

	b := bus.NewBus(16)
	client := homeassistant.NewClient(cfg.HomeAssistant.BaseURL, cfg.HomeAssistant.Token, cfg.RequestTimeout())
	registry := homeassistant.NewRegistryClient(cfg.HomeAssistant.BaseURL, cfg.HomeAssistant.Token, cfg.RequestTimeout())
	executor := homeassistant.NewExecutor(client, registry, b)

	s := scheduler.New(scheduler.Config{
		Store:    scheduler.NewFileStore(storePath),
		Executor: executor,
	})
	s.AttachBus(b)
	if err := s.Load(); err != nil {
		s.Shutdown()
		b.Close()
		return nil, fmt.Errorf("failed to load job store: %w", err)
	}
	return &cliRuntime{cfg: cfg, bus: b, jobs: s}, nil
}

func (rt *cliRuntime) close() {
	rt.jobs.Shutdown()
	rt.bus.Close()
}

// parseActionsFlag accepts inline JSON or @file indirection.
func parseActionsFlag(value string) (action.List, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return action.List{}, nil
	}
	if strings.HasPrefix(value, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(value, "@"))
		if err != nil {
			return nil, fmt.Errorf("failed to read actions file: %w", err)
		}
		value = string(data)
	}
	var list action.List
	if err := json.Unmarshal([]byte(value), &list); err != nil {
		return nil, fmt.Errorf("invalid actions JSON: %w", err)
	}
	return list, nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	jobs := rt.jobs.Jobs()
	if len(jobs) == 0 {
		fmt.Println("No jobs scheduled.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tENABLED\tSCHEDULE\tLAST RUN\tNEXT RUN\tACTIONS\tDESCRIPTION")
	fmt.Fprintln(w, "--\t-------\t--------\t--------\t--------\t-------\t-----------")
	for _, job := range jobs {
		schedule := job.CronExpression
		if job.OneShot {
			schedule += " (once)"
		}
		last := "-"
		if job.LastRun != nil {
			last = job.LastRun.Local().Format("2006-01-02 15:04")
		}
		next := "-"
		if job.NextRun != nil {
			next = job.NextRun.Local().Format("2006-01-02 15:04")
		}
		desc := job.Description
		if len(desc) > 40 {
			desc = desc[:40] + "..."
		}
		fmt.Fprintf(w, "%s\t%v\t%s\t%s\t%s\t%d\t%s\n", job.ID, job.Enabled, schedule, last, next, len(job.Actions), desc)
	}
	w.Flush()
	return nil
}

func runJobsAdd(cmd *cobra.Command, args []string) error {
	actions, err := parseActionsFlag(jobsAddActions)
	if err != nil {
		return err
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	job, err := rt.jobs.AddJob(jobsAddCron, jobsAddDescription, actions, jobsAddCreatedBy, jobsAddOneShot)
	if err != nil {
		return err
	}
	fmt.Printf("Job '%s' added.\n", job.ID)
	if job.NextRun != nil {
		fmt.Printf("Next run: %s\n", job.NextRun.Local().Format(time.RFC3339))
	}
	return nil
}

func runJobsRemove(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	id := args[0]
	if !rt.jobs.RemoveJob(id) {
		return fmt.Errorf("job not found: %s", id)
	}
	fmt.Printf("Job '%s' removed.\n", id)
	return nil
}

func runJobsEnable(cmd *cobra.Command, args []string) error {
	return setJobEnabled(args[0], true)
}

func runJobsDisable(cmd *cobra.Command, args []string) error {
	return setJobEnabled(args[0], false)
}

func setJobEnabled(id string, enabled bool) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ok := false
	if enabled {
		ok = rt.jobs.EnableJob(id)
	} else {
		ok = rt.jobs.DisableJob(id)
	}
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}

	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Printf("Job '%s' %s.\n", id, state)
	return nil
}

func runJobsRun(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	id := args[0]
	job, ok := rt.jobs.Job(id)
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}

	fmt.Printf("Running job '%s': %s\n", job.ID, job.Description)
	results, ok := rt.jobs.RunJob(id)
	if !ok {
		return fmt.Errorf("job %s is already running", id)
	}
	if len(results) == 0 {
		fmt.Println("Job has no actions.")
		return nil
	}
	for i, res := range results {
		if res.Failed() {
			fmt.Printf("[%d] %s error: %s\n", i+1, res.Action, res.Error)
			continue
		}
		fmt.Printf("[%d] %s: %s\n", i+1, res.Action, res.Output)
	}
	return nil
}
