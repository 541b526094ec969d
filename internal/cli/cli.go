package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignatij/agentflow/internal/claude"
	"github.com/ignatij/agentflow/internal/config"
	httpserver "github.com/ignatij/agentflow/internal/http"
	"github.com/ignatij/agentflow/internal/log"
	internal_storage "github.com/ignatij/agentflow/internal/storage"
	"github.com/ignatij/agentflow/pkg/agent"
	"github.com/ignatij/agentflow/pkg/budget"
	"github.com/ignatij/agentflow/pkg/models"
	"github.com/ignatij/agentflow/pkg/service"
)

// app bundles everything a command needs once the store is open.
type app struct {
	cfg        config.Config
	store      *internal_storage.PostgresStore
	registry   agent.Registry
	accountant *budget.Accountant
	engine     *service.WorkflowEngine
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.GetLogger().Errorf("Failed to close store: %v", err)
	}
}

func buildApp(cmd *cobra.Command) *app {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.GetLogger().Errorf("Failed to load config: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	connStr, _ := cmd.Flags().GetString("db")
	if connStr == "" {
		connStr = cfg.DB.ConnString()
	}
	store, err := internal_storage.InitStore(connStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	logger := log.GetLogger()
	registry := agent.NewRegistry()
	accountant := budget.NewAccountant(store, logger)
	tasks := service.NewTaskService(store, logger)

	promptsDir, _ := cmd.Flags().GetString("prompts")
	cliPath, _ := cmd.Flags().GetString("claude-cli")
	executor := claude.NewExecutor(cliPath, claude.NewPromptLoader(promptsDir, registry))

	stages := service.NewStageExecutor(store, tasks, registry, executor, accountant, cfg.Window.Limits(), logger)
	engine := service.NewWorkflowEngine(store, service.DefaultTemplates(), stages, tasks, logger,
		service.EngineConfig{ContinueOnHandlerError: cfg.Engine.ContinueOnHandlerError})

	return &app{cfg: cfg, store: store, registry: registry, accountant: accountant, engine: engine}
}

func SetupCLI(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("db", "", "Database connection string (overrides config)")
	rootCmd.PersistentFlags().String("prompts", "prompts", "Directory with agent system prompts")
	rootCmd.PersistentFlags().String("claude-cli", "", "Path to the claude CLI executable")

	startCmd := &cobra.Command{
		Use:   "start [workflow-type] [description]",
		Short: "Create a workflow and run it to completion",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			a := buildApp(cmd)
			defer a.Close()
			workflowType := args[0]
			description := strings.Join(args[1:], " ")
			id, err := a.engine.CreateAndExecute(context.Background(), workflowType, description)
			if err != nil {
				log.GetLogger().Errorf("Workflow failed: %v", err)
				if id != "" {
					fmt.Fprintf(os.Stderr, "Error: workflow %s failed: %v\n", id, err)
				} else {
					fmt.Fprintf(os.Stderr, "Error: failed to start workflow: %v\n", err)
				}
				os.Exit(1)
			}
			printWorkflow(a, id)
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume [workflow-id]",
		Short: "Resume a paused or failed workflow (latest when no id given)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := buildApp(cmd)
			defer a.Close()
			id := resolveWorkflowID(a, args)
			if err := a.engine.Resume(context.Background(), id); err != nil {
				log.GetLogger().Errorf("Failed to resume workflow: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to resume workflow %s: %v\n", id, err)
				os.Exit(1)
			}
			printWorkflow(a, id)
		},
	}

	pauseCmd := &cobra.Command{
		Use:   "pause [workflow-id]",
		Short: "Pause a running workflow at the next stage boundary",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := buildApp(cmd)
			defer a.Close()
			if err := a.engine.Pause(context.Background(), args[0]); err != nil {
				log.GetLogger().Errorf("Failed to pause workflow: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to pause workflow %s: %v\n", args[0], err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Workflow %s will pause at the next stage boundary\n", args[0])
		},
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel [workflow-id]",
		Short: "Cancel a workflow",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := buildApp(cmd)
			defer a.Close()
			if err := a.engine.Cancel(context.Background(), args[0]); err != nil {
				log.GetLogger().Errorf("Failed to cancel workflow: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to cancel workflow %s: %v\n", args[0], err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Cancelled workflow %s\n", args[0])
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status [workflow-id]",
		Short: "Show a workflow with its stages (latest when no id given)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := buildApp(cmd)
			defer a.Close()
			printWorkflow(a, resolveWorkflowID(a, args))
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			a := buildApp(cmd)
			defer a.Close()
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			workflows, err := a.engine.ListWorkflows(models.WorkflowStatus(status), limit)
			if err != nil {
				log.GetLogger().Errorf("Failed to list workflows: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list workflows: %v\n", err)
				os.Exit(1)
			}
			if len(workflows) == 0 {
				fmt.Fprintf(os.Stdout, "No workflows found.\n")
				return
			}
			for _, wf := range workflows {
				fmt.Fprintf(os.Stdout, "- %s  %-12s %-10s %s\n",
					wf.ID, wf.WorkflowType, wf.Status, wf.CreatedAt.Format(time.RFC3339))
			}
		},
	}
	listCmd.Flags().String("status", "", "Filter by status")
	listCmd.Flags().Int("limit", 20, "Maximum number of workflows to show")

	usageCmd := &cobra.Command{
		Use:   "usage [workflow-id]",
		Short: "Show token usage and cost for a workflow (latest when no id given)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := buildApp(cmd)
			defer a.Close()
			id := resolveWorkflowID(a, args)
			sum, err := a.accountant.WorkflowUsage(id)
			if err != nil {
				log.GetLogger().Errorf("Failed to fetch usage: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to fetch usage for %s: %v\n", id, err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Workflow %s\n", id)
			fmt.Fprintf(os.Stdout, "  Input tokens:  %d\n", sum.TotalInput)
			fmt.Fprintf(os.Stdout, "  Output tokens: %d\n", sum.TotalOutput)
			fmt.Fprintf(os.Stdout, "  Total tokens:  %d\n", sum.TotalTokens)
			fmt.Fprintf(os.Stdout, "  Cost:          $%.4f\n", sum.TotalCost)
			warn, err := a.accountant.IsBudgetWarning(id, a.cfg.Budget.WorkflowTokens)
			if err == nil && warn {
				fmt.Fprintf(os.Stdout, "  WARNING: above %.0f%% of the %d token budget\n",
					budget.WarningThreshold*100, a.cfg.Budget.WorkflowTokens)
			}
		},
	}

	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "List the available agent roles",
		Run: func(cmd *cobra.Command, args []string) {
			registry := agent.NewRegistry()
			configs := registry.All()
			sort.Slice(configs, func(i, j int) bool { return configs[i].Type < configs[j].Type })
			for _, c := range configs {
				fmt.Fprintf(os.Stdout, "- %-15s %-25s model=%-7s %s\n", c.Type, c.Name, c.ModelTier, c.Description)
			}
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			a := buildApp(cmd)
			defer a.Close()
			port, _ := cmd.Flags().GetString("port")
			if port == "" {
				port = a.cfg.Server.Port
			}
			if err := httpserver.StartServer(port, a.engine, a.accountant); err != nil {
				log.GetLogger().Errorf("Server failed: %v", err)
				fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "", "Port to listen on (overrides config)")

	rootCmd.AddCommand(startCmd, resumeCmd, pauseCmd, cancelCmd, statusCmd, listCmd, usageCmd, agentsCmd, serveCmd)
}

// resolveWorkflowID returns the explicit id argument or falls back to the
// most recently created workflow.
func resolveWorkflowID(a *app, args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	latest, err := a.store.LatestWorkflow()
	if err != nil {
		log.GetLogger().Errorf("Failed to find latest workflow: %v", err)
		fmt.Fprintf(os.Stderr, "Error: no workflows found\n")
		os.Exit(1)
	}
	return latest.ID
}

func printWorkflow(a *app, id string) {
	run, err := a.engine.GetWorkflow(id)
	if err != nil {
		log.GetLogger().Errorf("Failed to fetch workflow: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to fetch workflow %s: %v\n", id, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Workflow %s (%s): %s\n", run.ID, run.WorkflowType, run.Status)
	if run.ErrorMsg != "" {
		fmt.Fprintf(os.Stdout, "  Error: %s\n", run.ErrorMsg)
	}
	fmt.Fprintf(os.Stdout, "  Tokens used: %d, estimated cost: $%.4f\n", run.TotalTokensUsed, run.EstimatedCostUSD)
	for _, st := range run.Stages {
		mode := "sequential"
		if st.Parallel {
			mode = "parallel"
		}
		fmt.Fprintf(os.Stdout, "  [%02d] %-16s %-10s (%s)\n", st.Order, st.Name, st.Status, mode)
	}
}
