package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool is one callable tool advertised by the server.
type Tool struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`

	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
	props      map[string]struct{}
	closed     bool // additionalProperties: false
}

// Content is one block of a tool result.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// CallResult is the outcome of tools/call. IsError marks a failure reported
// by the tool itself, as opposed to a protocol or transport error.
type CallResult struct {
	Content           []Content       `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

// Text joins the text blocks of the result. Results with no text blocks fall
// back to the structured content, then to a note about the block types.
func (r *CallResult) Text() string {
	var parts []string
	var other []string
	for _, c := range r.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
			continue
		}
		other = append(other, c.Type)
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}
	if len(r.StructuredContent) > 0 {
		return string(r.StructuredContent)
	}
	if len(other) > 0 {
		return fmt.Sprintf("[%s content omitted]", strings.Join(other, ", "))
	}
	return ""
}

// ListTools returns every tool the server advertises, following pagination.
func (s *Server) ListTools(ctx context.Context) ([]*Tool, error) {
	var tools []*Tool
	cursor := ""
	for {
		var params map[string]any
		if cursor != "" {
			params = map[string]any{"cursor": cursor}
		}
		var page struct {
			Tools      []*Tool `json:"tools"`
			NextCursor string  `json:"nextCursor,omitempty"`
		}
		if err := s.call(ctx, "tools/list", params, &page); err != nil {
			return nil, s.explain(err)
		}
		tools = append(tools, page.Tools...)
		if page.NextCursor == "" || page.NextCursor == cursor {
			return tools, nil
		}
		cursor = page.NextCursor
	}
}

// CallTool invokes a tool. A tool-level failure comes back as a result with
// IsError set and a nil error.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	var res CallResult
	if err := s.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args}, &res); err != nil {
		return nil, s.explain(err)
	}
	return &res, nil
}
