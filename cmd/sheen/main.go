// Command sheen runs an autonomous coding agent against a task prompt.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ClaytonHunt/sheen-sub000/agent"
	"github.com/ClaytonHunt/sheen-sub000/config"
	"github.com/ClaytonHunt/sheen-sub000/engine"
	"github.com/ClaytonHunt/sheen-sub000/llm"
	"github.com/ClaytonHunt/sheen-sub000/permission"
	"github.com/ClaytonHunt/sheen-sub000/plan"
	"github.com/ClaytonHunt/sheen-sub000/project"
	"github.com/ClaytonHunt/sheen-sub000/tools"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\ninterrupted")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath    string
		maxIterations int
		autoApprove   bool
		resume        bool
		backend       string
		model         string
		provider      string
		command       string
		planFile      string
		workDir       string
		delay         string
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "sheen [prompt]",
		Short: "Autonomous task execution for coding agents",
		Long: "sheen breaks a prompt into tasks and drives an LLM-backed agent\n" +
			"through them iteration by iteration until the plan completes.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Best effort; a missing .env is the normal case.
			godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("max-iterations") {
				cfg.MaxIterations = maxIterations
			}
			if flags.Changed("auto-approve") {
				cfg.AutoApprove = autoApprove
			}
			if flags.Changed("resume") {
				cfg.Resume = resume
			}
			if flags.Changed("backend") {
				cfg.Backend = backend
			}
			if flags.Changed("model") {
				cfg.Model = model
			}
			if flags.Changed("provider") {
				cfg.Provider = provider
			}
			if flags.Changed("command") {
				cfg.Command = command
			}
			if flags.Changed("plan-file") {
				cfg.PlanFile = planFile
			}
			if flags.Changed("workdir") {
				cfg.WorkDir = workDir
			}
			if flags.Changed("verbose") {
				cfg.Verbose = verbose
			}
			if flags.Changed("delay") {
				d, err := time.ParseDuration(delay)
				if err != nil {
					return fmt.Errorf("invalid --delay: %w", err)
				}
				cfg.Delay = d
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if len(args) > 0 {
				cfg.Prompt = args[0]
			}
			if cfg.Prompt == "" && !cfg.Resume {
				return fmt.Errorf("a task prompt is required unless --resume is set")
			}

			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: sheen.yaml in . or the user config dir)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "maximum loop iterations")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "approve normal-risk tool calls without prompting")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume the plan file instead of starting fresh")
	cmd.Flags().StringVar(&backend, "backend", "", "agent backend: native or subprocess")
	cmd.Flags().StringVar(&model, "model", "", "model name for the native backend")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider for the native backend")
	cmd.Flags().StringVar(&command, "command", "", "CLI binary for the subprocess backend")
	cmd.Flags().StringVar(&planFile, "plan-file", "", "path to the YAML plan file")
	cmd.Flags().StringVar(&workDir, "workdir", "", "working directory for tool execution")
	cmd.Flags().StringVar(&delay, "delay", "", "pause between iterations, e.g. 2s")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print agent output and iteration events")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	workDir := cfg.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		workDir = wd
	}

	proj := project.Detect(workDir)

	env := tools.NewEnvironment(workDir)
	registry := tools.NewRegistry(func(msg string) {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	})
	tools.RegisterCoreTools(registry, env)

	gate := buildGate(cfg)

	ag, err := buildAgent(cfg, proj, gate, registry, workDir)
	if err != nil {
		return err
	}

	planner := plan.NewPlanner(
		plan.WithStore(plan.NewFileStore(cfg.PlanFile)),
		plan.WithWarn(func(msg string) {
			fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
		}),
	)
	if cfg.Resume {
		if err := planner.Reload(); err != nil {
			return fmt.Errorf("resume plan: %w", err)
		}
	}
	if cfg.Prompt != "" {
		planner.CreatePlan(cfg.Prompt)
	}

	eng := engine.New(ag, planner, proj, engine.Config{
		MaxIterations:  cfg.MaxIterations,
		ErrorThreshold: cfg.ErrorThreshold,
		StallThreshold: cfg.StallThreshold,
		MaxTaskRetries: cfg.MaxTaskRetries,
		Delay:          cfg.Delay,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(eng.Events(), cfg.Verbose)
	}()

	state := eng.Run(ctx)
	<-done

	fmt.Printf("run finished: %s after %d iteration(s), %d file(s) changed, %d commit(s)\n",
		state.StopReason, state.Iteration, state.Metrics.FileCount, state.Metrics.CommitCount)

	switch state.StopReason {
	case engine.StopComplete, engine.StopRequested, engine.StopPaused:
		return nil
	default:
		return fmt.Errorf("run stopped: %s", state.StopReason)
	}
}

func buildGate(cfg *config.Config) *permission.Gate {
	rules := make(map[string]permission.Rule, len(cfg.PermissionRules))
	for tool, rule := range cfg.PermissionRules {
		rules[tool] = permission.Rule(rule)
	}

	opts := []permission.Option{
		permission.WithRules(rules),
		permission.WithAutoApprove(cfg.AutoApprove),
	}
	// Without a terminal there is nobody to ask; the gate then denies
	// anything it cannot decide on its own.
	if info, err := os.Stdin.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
		opts = append(opts, permission.WithPrompter(terminalPrompter{}))
	}
	return permission.NewGate(opts...)
}

// terminalPrompter asks for approval on stdin.
type terminalPrompter struct{}

func (terminalPrompter) Approve(ctx context.Context, req permission.Request) (bool, error) {
	fmt.Printf("\n[%s] %s wants to run with %v\nallow? [y/N] ", req.Risk, req.Tool, req.Params)

	answer := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		answer <- strings.TrimSpace(strings.ToLower(line))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line := <-answer:
		return line == "y" || line == "yes", nil
	}
}

func buildAgent(cfg *config.Config, proj *project.Context, gate *permission.Gate, registry *tools.Registry, workDir string) (agent.Agent, error) {
	opts := agent.Options{
		SystemPrompt: systemPrompt(proj),
		Gate:         gate,
		Registry:     registry,
		Timeout:      cfg.Timeout,
		TokenBudget:  cfg.TokenBudget,
		WorkDir:      workDir,
	}

	switch cfg.Backend {
	case config.BackendSubprocess:
		opts.Backend = agent.BackendSubprocess
		opts.Command = cfg.Command
		opts.Args = cfg.Args
	default:
		adapter, err := llm.NewGollmAdapter(cfg.Provider, cfg.APIKey(), llm.WithModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("configure %s adapter: %w", cfg.Provider, err)
		}
		opts.Backend = agent.BackendNative
		opts.Client = llm.NewClient(llm.WithProvider(adapter))
		opts.Model = cfg.Model
		opts.Provider = cfg.Provider
	}

	return agent.New(opts)
}

func systemPrompt(proj *project.Context) string {
	var sb strings.Builder
	sb.WriteString("You are an autonomous coding agent. Work on the given task using the available tools. ")
	sb.WriteString("Make small verifiable changes, run tests where they exist, and commit logical units of work.")
	if proj != nil {
		sb.WriteString("\n\n")
		sb.WriteString(proj.EnvironmentBlock())
		if docs := proj.DiscoverDocs(); docs != "" {
			sb.WriteString("\n\n")
			sb.WriteString(docs)
		}
	}
	return sb.String()
}

func printEvents(events <-chan engine.Event, verbose bool) {
	for ev := range events {
		switch ev.Kind {
		case engine.EventTaskStart:
			fmt.Printf("task started: %v\n", ev.Data["description"])
		case engine.EventTaskCompleted:
			fmt.Printf("task completed: %v\n", ev.Data["task_id"])
		case engine.EventTaskFailed:
			fmt.Printf("task failed: %v (%v)\n", ev.Data["task_id"], ev.Data["error"])
		case engine.EventFailure:
			fmt.Fprintf(os.Stderr, "error: %v\n", ev.Data["error"])
		case engine.EventNoProgress:
			fmt.Printf("no progress for %v iteration(s)\n", ev.Data["consecutive"])
		case engine.EventAgentOutput:
			if verbose {
				fmt.Printf("agent: %v\n", ev.Data["output"])
			}
		case engine.EventIterationStart:
			if verbose {
				fmt.Printf("--- iteration %v ---\n", ev.Data["iteration"])
			}
		}
	}
}
