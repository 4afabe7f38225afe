package agent

import (
	"context"
	"fmt"

	"github.com/ppiankov/dailyforge/internal/toolserver"
)

// ToolServer is what the agent needs from a tool provider.
// *toolserver.Server satisfies it.
type ToolServer interface {
	Name() string
	ListTools(ctx context.Context) ([]*toolserver.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*toolserver.CallResult, error)
}

// Agent is a hosted model configured with instructions and tools.
type Agent struct {
	Name         string
	Instructions string
	Model        string
	ToolServers  []ToolServer

	// EnforcedArguments are set on every call to a tool whose input schema
	// declares them, replacing whatever the model sent.
	EnforcedArguments map[string]any
}

// Result is the outcome of a completed run.
type Result struct {
	FinalOutput string
	Turns       int
	ToolCalls   int
	TotalTokens int
}

// MaxTurnsExceededError is returned when the model is still calling tools
// after the turn limit.
type MaxTurnsExceededError struct {
	MaxTurns int
}

func (e *MaxTurnsExceededError) Error() string {
	return fmt.Sprintf("max turns (%d) exceeded", e.MaxTurns)
}
