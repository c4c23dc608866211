package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/embabel/goalrun/internal/agentfile"
	"github.com/embabel/goalrun/internal/builtintool"
	"github.com/embabel/goalrun/internal/journal"
	"github.com/embabel/goalrun/internal/mcptool"
	"github.com/embabel/goalrun/internal/printer"
	"github.com/embabel/goalrun/internal/process"
	"github.com/embabel/goalrun/internal/providers"
	"github.com/embabel/goalrun/internal/runlog"
	"github.com/embabel/goalrun/internal/snapstore"
)

var (
	runBindings  []string
	runProtected []string
	runWorkspace string
)

var runCmd = &cobra.Command{
	Use:   "run PROFILE",
	Short: "Run an agent profile to completion",
	Long: `Run loads an agent profile, seeds the blackboard from --bind and
--protect flags, and drives the run until it completes, fails, or is
interrupted. When an action suspends waiting for input, the awaited value
is read from stdin and the run resumes.

Model credentials come from the environment (or a .env file):
LLM_PROVIDER selects the backend, see the provider's own variables for
keys and model names.

Examples:
  goalrun run researcher.yaml --bind topic="solar power"
  goalrun run researcher.yaml --protect config=prod --redis localhost:6379`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&runBindings, "bind", nil, "seed blackboard binding NAME=VALUE (repeatable)")
	runCmd.Flags().StringArrayVar(&runProtected, "protect", nil, "seed protected binding NAME=VALUE (repeatable)")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", ".", "root directory the built-in tools operate in")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profile, err := agentfile.Load(args[0])
	if err != nil {
		return printer.Error("failed to load profile: %v", err)
	}

	model, modelName, err := providers.NewClientFromEnv()
	if err != nil {
		return printer.Error("failed to create model client: %v", err)
	}
	printer.Info("agent %s using model %s\n", profile.Name, modelName)

	tools := builtintool.Registry(runWorkspace)
	for _, srv := range profile.Servers {
		client, err := mcptool.Connect(ctx, srv.Name, srv.Command, srv.Args)
		if err != nil {
			return printer.Error("failed to start MCP server %s: %v", srv.Name, err)
		}
		defer client.Close()
		client.Register(tools)
		printer.Info("connected MCP server %s\n", srv.Name)
	}

	agent, err := profile.Build(model, tools, nil)
	if err != nil {
		return printer.Error("failed to build agent: %v", err)
	}

	recorder, cleanup, err := newRecorder(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	platform := process.NewPlatform(recorder)
	seed, err := parseSeed()
	if err != nil {
		return printer.Error("%v", err)
	}
	proc, err := platform.Create(agent, seed)
	if err != nil {
		return printer.Error("failed to create run: %v", err)
	}
	recorder.Register(proc)
	printer.Info("run %s started\n", proc.ID())

	go func() {
		<-ctx.Done()
		proc.Kill()
	}()

	stdin := bufio.NewReader(os.Stdin)
	for {
		if err := proc.Run(ctx); err != nil {
			return printer.Error("run %s failed: %v", proc.ID(), err)
		}
		if proc.Status() != process.StatusWaiting {
			break
		}
		printer.Prompt("%s> ", proc.AwaitRequest())
		line, err := stdin.ReadString('\n')
		if err != nil {
			proc.Kill()
			break
		}
		if err := proc.Resume(strings.TrimSpace(line)); err != nil {
			return printer.Error("failed to resume: %v", err)
		}
	}

	switch proc.Status() {
	case process.StatusCompleted:
		printer.Success("run %s completed\n", proc.ID())
		if last, ok := proc.Blackboard().Last(); ok {
			printer.Info("%v\n", last)
		}
	case process.StatusKilled:
		printer.Warning("run %s killed\n", proc.ID())
	default:
		printer.Warning("run %s ended in status %s\n", proc.ID(), proc.Status())
	}
	return nil
}

func newRecorder(ctx context.Context) (*runlog.Recorder, func(), error) {
	var opts []runlog.Option
	var closers []func()

	j, err := journal.Open(ctx, journalPath)
	if err != nil {
		return nil, nil, printer.Error("failed to open journal: %v", err)
	}
	closers = append(closers, func() { j.Close() })
	opts = append(opts, runlog.WithJournal(j))

	if redisAddr != "" {
		snaps, err := snapstore.New(&redis.Options{Addr: redisAddr}, instance)
		if err != nil {
			j.Close()
			return nil, nil, printer.Error("failed to create snapshot store: %v", err)
		}
		closers = append(closers, func() { snaps.Close() })
		opts = append(opts, runlog.WithSnapshots(snaps))
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return runlog.New(opts...), cleanup, nil
}

func parseSeed() (process.Seed, error) {
	seed := process.Seed{
		Bindings:  make(map[string]any),
		Protected: make(map[string]any),
	}
	for _, kv := range runBindings {
		name, value, err := splitBinding(kv)
		if err != nil {
			return process.Seed{}, err
		}
		seed.Bindings[name] = value
	}
	for _, kv := range runProtected {
		name, value, err := splitBinding(kv)
		if err != nil {
			return process.Seed{}, err
		}
		seed.Protected[name] = value
	}
	return seed, nil
}

func splitBinding(kv string) (string, string, error) {
	name, value, found := strings.Cut(kv, "=")
	if !found || name == "" {
		return "", "", fmt.Errorf("invalid binding %q (expected NAME=VALUE)", kv)
	}
	return name, value, nil
}
