package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle of one automation run.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON writes the state name instead of its number.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Policy is the tool invocation policy passed with every tool call. The keys
// are the argument names the codex MCP tool expects.
type Policy struct {
	ApprovalPolicy string `yaml:"approval_policy" json:"approval-policy,omitempty"`
	Sandbox        string `yaml:"sandbox" json:"sandbox,omitempty"`
}

// DefaultPolicy never asks for approval and lets the agent write only inside
// the workspace.
func DefaultPolicy() Policy {
	return Policy{ApprovalPolicy: "never", Sandbox: "workspace-write"}
}

// Arguments returns the policy as tool call arguments. Empty fields are left out.
func (p Policy) Arguments() map[string]any {
	args := make(map[string]any, 2)
	if p.ApprovalPolicy != "" {
		args["approval-policy"] = p.ApprovalPolicy
	}
	if p.Sandbox != "" {
		args["sandbox"] = p.Sandbox
	}
	return args
}

// String renders the policy as the JSON object quoted in the instructions.
func (p Policy) String() string {
	data, _ := json.Marshal(p)
	return string(data)
}

// Descriptor is the single task handed to the agent service.
type Descriptor struct {
	Name         string
	Instructions string
	Input        string
	Model        string
	MaxTurns     int
	Policy       Policy
}

// Validate rejects descriptors the agent service cannot run.
func (d *Descriptor) Validate() error {
	if d.Instructions == "" {
		return errors.New("task instructions are empty")
	}
	if d.Input == "" {
		return errors.New("task input is empty")
	}
	if d.Model == "" {
		return errors.New("task model is empty")
	}
	if d.MaxTurns < 1 {
		return fmt.Errorf("max turns must be positive, got %d", d.MaxTurns)
	}
	return nil
}

// Result captures the outcome of one run.
type Result struct {
	RunID       string        `json:"run_id"`
	Stamp       string        `json:"stamp"`
	State       State         `json:"state"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	FinalOutput string        `json:"final_output,omitempty"`
	Error       string        `json:"error,omitempty"`
	Turns       int           `json:"turns,omitempty"`
	ToolCalls   int           `json:"tool_calls,omitempty"`
	Artifacts   []string      `json:"artifacts,omitempty"` // files the agent created in the output dir
	OutputFile  string        `json:"output_file,omitempty"`
}

// Finish stamps the end of the run.
func (r *Result) Finish(state State, now time.Time) {
	r.State = state
	r.EndedAt = now
	r.Duration = now.Sub(r.StartedAt)
}
