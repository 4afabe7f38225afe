package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ppiankov/dailyforge/internal/toolserver"
)

const maxFunctionNameLen = 64

var invalidFunctionChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// boundTool ties a tool to the server that serves it.
type boundTool struct {
	server ToolServer
	tool   *toolserver.Tool
}

// toolRegistry maps model-facing function names to tools.
type toolRegistry struct {
	byFunction map[string]*boundTool
	defs       []openai.Tool
}

// collectTools lists the tools of every server and exposes each as a
// function tool. Function names are restricted to what the API accepts;
// collisions get a numeric suffix.
func collectTools(ctx context.Context, servers []ToolServer) (*toolRegistry, error) {
	reg := &toolRegistry{byFunction: make(map[string]*boundTool)}
	for _, srv := range servers {
		tools, err := srv.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tools of %s: %w", srv.Name(), err)
		}
		for _, tool := range tools {
			fn := reg.uniqueName(functionName(tool.Name))
			reg.byFunction[fn] = &boundTool{server: srv, tool: tool}

			params := tool.InputSchema
			if len(params) == 0 {
				params = emptyObjectSchema
			}
			desc := tool.Description
			if desc == "" {
				desc = tool.Title
			}
			reg.defs = append(reg.defs, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        fn,
					Description: desc,
					Parameters:  params,
				},
			})
		}
	}
	return reg, nil
}

func (reg *toolRegistry) uniqueName(name string) string {
	if _, taken := reg.byFunction[name]; !taken {
		return name
	}
	for i := 2; ; i++ {
		suffix := "_" + strconv.Itoa(i)
		candidate := name
		if len(candidate)+len(suffix) > maxFunctionNameLen {
			candidate = candidate[:maxFunctionNameLen-len(suffix)]
		}
		candidate += suffix
		if _, taken := reg.byFunction[candidate]; !taken {
			return candidate
		}
	}
}

func functionName(toolName string) string {
	name := invalidFunctionChars.ReplaceAllString(toolName, "_")
	if name == "" {
		name = "tool"
	}
	if len(name) > maxFunctionNameLen {
		name = name[:maxFunctionNameLen]
	}
	return name
}
