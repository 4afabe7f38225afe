// Package automation runs one daily automation: it starts the tool server,
// hands it to the agent, and records the outcome in the output directory.
package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/dailyforge/internal/agent"
	"github.com/ppiankov/dailyforge/internal/config"
	"github.com/ppiankov/dailyforge/internal/reporter"
	"github.com/ppiankov/dailyforge/internal/task"
	"github.com/ppiankov/dailyforge/internal/toolserver"
)

// ExitCode is the process exit status of a run.
type ExitCode int

const (
	ExitOK      ExitCode = 0
	ExitFailure ExitCode = 1
)

// AgentName identifies the agent in logs and on the hosted service.
const AgentName = "Daily Automation Agent"

// ToolServer is a started tool server as the run uses it.
// *toolserver.Server satisfies it.
type ToolServer interface {
	agent.ToolServer
	Close() error
}

// StartFunc launches a tool server.
type StartFunc func(ctx context.Context, p toolserver.Params) (ToolServer, error)

// AgentRunner executes an agent to completion.
// *agent.Runner satisfies it.
type AgentRunner interface {
	Run(ctx context.Context, a *agent.Agent, input string, maxTurns int) (*agent.Result, error)
}

// AgentFactory builds the agent runner for one run. The observer receives
// progress events.
type AgentFactory func(apiKey, baseURL string, observer func(agent.Event)) AgentRunner

// Display modes for the live view while the agent runs.
const (
	DisplayOff     = "off"
	DisplayMinimal = "minimal"
	DisplayFull    = "full"
)

// Runner executes the daily automation. A Runner may be used for several
// sequential runs; each run acquires and releases its own tool server.
type Runner struct {
	settings *config.Settings
	runID    string
	version  string
	display  string
	color    bool
	stdout   io.Writer
	stderr   io.Writer
	now      func() time.Time
	start    StartFunc
	newAgent AgentFactory
	env      map[string]string
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput sets the console writers.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithStarter replaces how the tool server is launched.
func WithStarter(fn StartFunc) Option {
	return func(r *Runner) { r.start = fn }
}

// WithAgentFactory replaces the hosted agent runner.
func WithAgentFactory(fn AgentFactory) Option {
	return func(r *Runner) { r.newAgent = fn }
}

// WithDisplay selects the live view (off, minimal, full) and whether
// console output is colored.
func WithDisplay(mode string, color bool) Option {
	return func(r *Runner) {
		r.display = mode
		r.color = color
	}
}

// WithRunID tags log records of the run.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// WithVersion is reported to the tool server as the client version.
func WithVersion(v string) Option {
	return func(r *Runner) { r.version = v }
}

// WithToolServerEnv adds environment variables for the tool server on top
// of the configured ones.
func WithToolServerEnv(env map[string]string) Option {
	return func(r *Runner) { r.env = env }
}

// New creates a runner for the given settings.
func New(settings *config.Settings, opts ...Option) *Runner {
	r := &Runner{
		settings: settings,
		display:  DisplayOff,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		now:      time.Now,
		start:    startToolServer,
		newAgent: newHostedAgent,
		version:  "dev",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func startToolServer(ctx context.Context, p toolserver.Params) (ToolServer, error) {
	srv, err := toolserver.Start(ctx, p)
	if err != nil {
		return nil, err
	}
	return srv, nil
}

func newHostedAgent(apiKey, baseURL string, observer func(agent.Event)) AgentRunner {
	return agent.NewRunner(apiKey, baseURL, agent.WithObserver(observer))
}

// Run performs one automation run and returns the process exit code.
// A missing credential fails before anything is created or started.
// Otherwise exactly one file is written to the output directory: the
// summary on success or the error log on failure.
func (r *Runner) Run(ctx context.Context) ExitCode {
	s := r.settings
	out := reporter.NewTextReporter(r.stdout, r.color)
	errOut := reporter.NewTextReporter(r.stderr, false)

	apiKey, err := s.Credential()
	if err != nil {
		errOut.PrintError(fmt.Sprintf("Error: %s environment variable not set", s.CredentialEnv))
		return ExitFailure
	}

	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		errOut.PrintError(fmt.Sprintf("Error: create output directory: %v", err))
		return ExitFailure
	}

	started := r.now()
	res := &task.Result{
		RunID:     r.runID,
		Stamp:     started.Format(task.StampLayout),
		State:     task.StateRunning,
		StartedAt: started,
	}
	log := slog.With("run_id", r.runID, "stamp", res.Stamp)

	out.PrintHeader()
	out.PrintStarting(started)
	log.Info("starting daily automation", "output_dir", s.OutputDir, "model", s.Model)

	progress := reporter.NewProgress(started)
	final, err := r.execute(ctx, apiKey, res.Stamp, out, progress)
	if err == nil {
		out.PrintCompleted(final.FinalOutput)
		res.OutputFile, err = writeNew(s.OutputDir, SummaryName(res.Stamp), []byte(final.FinalOutput))
	}
	res.Artifacts = progress.Snapshot().Artifacts

	if err != nil {
		res.Error = err.Error()
		res.Finish(task.StateFailed, r.now())
		r.fail(log, errOut, res, err)
		return ExitFailure
	}

	res.FinalOutput = final.FinalOutput
	res.Turns = final.Turns
	res.ToolCalls = final.ToolCalls
	res.Finish(task.StateCompleted, r.now())

	out.PrintSaved(res.OutputFile)
	out.PrintStats(progress.Snapshot(), res.Duration)
	out.PrintRule()
	log.Info("daily automation completed", "state", res.State, "turns", res.Turns,
		"tool_calls", res.ToolCalls, "tokens", final.TotalTokens, "duration", res.Duration, "summary", res.OutputFile)
	return ExitOK
}

// fail reports a runtime error on stderr and records it in the error log.
func (r *Runner) fail(log *slog.Logger, errOut *reporter.TextReporter, res *task.Result, err error) {
	msg := "Error in daily automation: " + err.Error()
	errOut.PrintError(msg)

	record := fmt.Sprintf("%s: %s\n%s", r.now().Format(reporter.TimeLayout), msg, err.Error())
	path, werr := writeNew(r.settings.OutputDir, ErrorLogName(res.Stamp), []byte(record))
	if werr != nil {
		log.Error("failed to write error log", "error", werr)
		return
	}
	res.OutputFile = path

	var maxTurns *agent.MaxTurnsExceededError
	log.Error("daily automation failed", "state", res.State, "error", err,
		"max_turns_exceeded", errors.As(err, &maxTurns),
		"tool_server_closed", errors.Is(err, toolserver.ErrClosed),
		"cancelled", errors.Is(err, context.Canceled),
		"duration", res.Duration, "error_log", path)
}

// execute holds the tool server for the duration of the agent call and
// releases it on every path.
func (r *Runner) execute(ctx context.Context, apiKey, stamp string, out *reporter.TextReporter, progress *reporter.Progress) (*agent.Result, error) {
	s := r.settings

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.RunTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, s.RunTimeout)
		defer cancelTimeout()
	}

	live := r.display != DisplayOff

	srv, err := r.start(ctx, r.toolServerParams(live))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			slog.Debug("tool server close", "name", srv.Name(), "error", err)
		}
	}()
	out.PrintServerStarted("Codex MCP")

	watcher, err := watchArtifacts(s.OutputDir, func(path string) {
		progress.AddArtifact(path)
		if !live {
			out.PrintArtifact(path)
		}
	})
	if err != nil {
		slog.Warn("artifact watcher unavailable", "error", err)
	}

	desc := &task.Descriptor{
		Name: AgentName,
		Instructions: task.BuildInstructions(task.PromptParams{
			Now:       r.now(),
			Stamp:     stamp,
			OutputDir: s.OutputDir,
			Policy:    s.Policy,
		}),
		Input:    s.Input,
		Model:    s.Model,
		MaxTurns: s.MaxTurns,
		Policy:   s.Policy,
	}
	if desc.Input == "" {
		desc.Input = task.DefaultInput
	}
	if err := desc.Validate(); err != nil {
		stopWatcher(watcher)
		return nil, err
	}

	a := &agent.Agent{
		Name:              desc.Name,
		Instructions:      desc.Instructions,
		Model:             desc.Model,
		ToolServers:       []agent.ToolServer{srv},
		EnforcedArguments: desc.Policy.Arguments(),
	}

	out.PrintRunning()
	stopDisplay := r.startDisplay(progress, cancel)
	result, err := r.newAgent(apiKey, s.APIBaseURL, progress.Observe).Run(ctx, a, desc.Input, desc.MaxTurns)
	progress.MarkDone()
	stopDisplay()
	stopWatcher(watcher)

	if live {
		for _, path := range progress.Snapshot().Artifacts {
			out.PrintArtifact(path)
		}
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && s.RunTimeout > 0 {
			return nil, fmt.Errorf("run timeout %s exceeded: %w", s.RunTimeout, err)
		}
		return nil, err
	}
	return result, nil
}

func (r *Runner) toolServerParams(live bool) toolserver.Params {
	ts := r.settings.ToolServer

	env := make(map[string]string, len(ts.Env)+len(r.env))
	for k, v := range ts.Env {
		env[k] = v
	}
	for k, v := range r.env {
		env[k] = v
	}

	var stderr io.Writer = r.stderr
	if live {
		// the live view owns the terminal; the tail is still kept for errors
		stderr = io.Discard
	}

	return toolserver.Params{
		Name:           ts.Name,
		Command:        ts.Command,
		Args:           ts.Args,
		Dir:            ts.Dir,
		Env:            env,
		AllowEnv:       []string{r.settings.CredentialEnv},
		SessionTimeout: ts.SessionTimeout,
		Stderr:         stderr,
		ClientName:     "dailyforge",
		ClientVersion:  r.version,
	}
}

// startDisplay starts the live view and returns a function that stops it.
func (r *Runner) startDisplay(progress *reporter.Progress, cancel context.CancelFunc) func() {
	switch r.display {
	case DisplayFull:
		model := reporter.NewTUIModel("Daily Codex Automation", progress.Snapshot, cancel)
		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithOutput(r.stdout))
		done := make(chan struct{})
		go func() {
			defer close(done)
			if _, err := program.Run(); err != nil {
				slog.Warn("TUI error", "error", err)
			}
		}()
		return func() {
			program.Quit()
			<-done
		}
	case DisplayMinimal:
		live := reporter.NewLiveReporter(r.stdout, r.color, progress.Snapshot)
		live.Start()
		return live.Stop
	default:
		return func() {}
	}
}

func stopWatcher(w *artifactWatcher) {
	if w == nil {
		return
	}
	if err := w.Close(); err != nil {
		slog.Debug("artifact watcher close", "error", err)
	}
}
