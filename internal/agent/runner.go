package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ppiankov/dailyforge/internal/toolserver"
)

// ChatClient is the hosted model endpoint. *openai.Client satisfies it.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Runner drives an agent against the hosted model: each turn sends the
// conversation, executes requested tool calls, and stops at the first reply
// without tool calls.
type Runner struct {
	client   ChatClient
	observer func(Event)
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver registers a progress callback.
func WithObserver(fn func(Event)) Option {
	return func(r *Runner) { r.observer = fn }
}

// WithClient replaces the hosted model client.
func WithClient(c ChatClient) Option {
	return func(r *Runner) { r.client = c }
}

// NewRunner creates a runner talking to the OpenAI API, or to a compatible
// endpoint when baseURL is set.
func NewRunner(apiKey, baseURL string, opts ...Option) *Runner {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	r := &Runner{
		client: openai.NewClientWithConfig(cfg),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the agent until it produces a final answer or maxTurns turns
// have been used. There is no local retry: the first hosted service error
// ends the run.
func (r *Runner) Run(ctx context.Context, a *Agent, input string, maxTurns int) (*Result, error) {
	if maxTurns < 1 {
		return nil, fmt.Errorf("max turns must be positive, got %d", maxTurns)
	}

	reg, err := collectTools(ctx, a.ToolServers)
	if err != nil {
		return nil, err
	}
	r.emit(Event{Type: EventToolsListed, Count: len(reg.defs)})
	slog.Debug("agent tools", "agent", a.Name, "count", len(reg.defs))

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: a.Instructions},
		{Role: openai.ChatMessageRoleUser, Content: input},
	}
	res := &Result{}

	for turn := 1; turn <= maxTurns; turn++ {
		r.emit(Event{Type: EventTurnStarted, Turn: turn})

		req := openai.ChatCompletionRequest{
			Model:    a.Model,
			Messages: messages,
		}
		if len(reg.defs) > 0 {
			req.Tools = reg.defs
		}

		resp, err := r.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", turn, err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("turn %d: no choices in response", turn)
		}
		res.Turns = turn
		res.TotalTokens += resp.Usage.TotalTokens

		msg := resp.Choices[0].Message
		msg.Role = openai.ChatMessageRoleAssistant
		messages = append(messages, msg)

		if len(msg.ToolCalls) == 0 {
			res.FinalOutput = msg.Content
			r.emit(Event{Type: EventRunCompleted, Turn: turn})
			slog.Debug("agent finished", "agent", a.Name, "turns", turn, "tool_calls", res.ToolCalls,
				"tokens", res.TotalTokens, "finish_reason", resp.Choices[0].FinishReason)
			return res, nil
		}

		for _, call := range msg.ToolCalls {
			out, err := r.invoke(ctx, a, reg, turn, call)
			if err != nil {
				return nil, fmt.Errorf("turn %d: %w", turn, err)
			}
			res.ToolCalls++
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    out,
				ToolCallID: call.ID,
			})
		}
	}

	return nil, &MaxTurnsExceededError{MaxTurns: maxTurns}
}

// invoke executes one tool call. Problems the model can fix (unknown tool,
// bad arguments, tool-reported failure) come back as tool output; a dead
// tool server or a cancelled context is returned as an error.
func (r *Runner) invoke(ctx context.Context, a *Agent, reg *toolRegistry, turn int, call openai.ToolCall) (string, error) {
	fn := call.Function.Name
	bound, ok := reg.byFunction[fn]
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", fn), nil
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return fmt.Sprintf("error: arguments for %s are not a JSON object: %v", fn, err), nil
		}
	}
	for key, val := range a.EnforcedArguments {
		if bound.tool.DeclaresArgument(key) {
			args[key] = val
		}
	}
	if err := bound.tool.ValidateArguments(args); err != nil {
		return fmt.Sprintf("error: invalid arguments for %s: %v", fn, err), nil
	}

	r.emit(Event{Type: EventToolCalled, Turn: turn, Tool: bound.tool.Name})
	slog.Debug("tool call", "server", bound.server.Name(), "tool", bound.tool.Name, "turn", turn)

	start := r.now()
	out, err := bound.server.CallTool(ctx, bound.tool.Name, args)
	elapsed := r.now().Sub(start)
	if err != nil {
		var rpcErr *toolserver.RPCError
		if errors.As(err, &rpcErr) && ctx.Err() == nil {
			r.emit(Event{Type: EventToolCompleted, Turn: turn, Tool: bound.tool.Name, IsError: true, Duration: elapsed})
			return "error: " + rpcErr.Message, nil
		}
		return "", fmt.Errorf("call %s on %s: %w", bound.tool.Name, bound.server.Name(), err)
	}

	r.emit(Event{Type: EventToolCompleted, Turn: turn, Tool: bound.tool.Name, IsError: out.IsError, Duration: elapsed})

	text := out.Text()
	if out.IsError {
		text = "error: " + text
	}
	if text == "" {
		text = "(no output)"
	}
	return text, nil
}

func (r *Runner) emit(ev Event) {
	if r.observer == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = r.now()
	}
	r.observer(ev)
}
