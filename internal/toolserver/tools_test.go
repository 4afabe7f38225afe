package toolserver

import (
	"encoding/json"
	"testing"
)

func TestCallResult_Text(t *testing.T) {
	tests := []struct {
		name string
		res  CallResult
		want string
	}{
		{
			name: "joins text blocks",
			res:  CallResult{Content: []Content{{Type: "text", Text: "a"}, {Type: "image", Data: "xx"}, {Type: "text", Text: "b"}}},
			want: "a\nb",
		},
		{
			name: "structured fallback",
			res:  CallResult{StructuredContent: json.RawMessage(`{"ok":true}`)},
			want: `{"ok":true}`,
		},
		{
			name: "non-text only",
			res:  CallResult{Content: []Content{{Type: "image"}, {Type: "audio"}}},
			want: "[image, audio content omitted]",
		},
		{
			name: "empty",
			res:  CallResult{},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Text(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

const codexSchema = `{
  "type": "object",
  "properties": {
    "prompt": {"type": "string"},
    "approval-policy": {"type": "string", "enum": ["untrusted", "on-failure", "on-request", "never"]},
    "sandbox": {"type": "string", "enum": ["read-only", "workspace-write", "danger-full-access"]}
  },
  "required": ["prompt"]
}`

func TestValidateArguments(t *testing.T) {
	tool := &Tool{Name: "codex", InputSchema: json.RawMessage(codexSchema)}

	if err := tool.ValidateArguments(map[string]any{"prompt": "summarize", "approval-policy": "never"}); err != nil {
		t.Errorf("valid arguments rejected: %v", err)
	}
	if err := tool.ValidateArguments(map[string]any{"approval-policy": "never"}); err == nil {
		t.Error("missing required prompt should fail")
	}
	if err := tool.ValidateArguments(map[string]any{"prompt": "x", "sandbox": "yolo"}); err == nil {
		t.Error("enum violation should fail")
	}
	if err := tool.ValidateArguments(nil); err == nil {
		t.Error("nil arguments still need prompt")
	}
}

func TestValidateArguments_NoSchema(t *testing.T) {
	tool := &Tool{Name: "free"}
	if err := tool.ValidateArguments(map[string]any{"anything": 1}); err != nil {
		t.Errorf("tool without schema should accept anything: %v", err)
	}
}

func TestValidateArguments_BrokenSchema(t *testing.T) {
	tool := &Tool{Name: "broken", InputSchema: json.RawMessage(`{"type": 42}`)}
	if err := tool.ValidateArguments(map[string]any{"x": 1}); err != nil {
		t.Errorf("uncompilable schema should skip validation: %v", err)
	}
}

func TestDeclaresArgument(t *testing.T) {
	codex := &Tool{Name: "codex", InputSchema: json.RawMessage(codexSchema)}
	if !codex.DeclaresArgument("sandbox") {
		t.Error("codex declares sandbox")
	}

	reply := &Tool{Name: "codex-reply", InputSchema: json.RawMessage(`{"type":"object","properties":{"prompt":{"type":"string"},"conversationId":{"type":"string"}}}`)}
	if reply.DeclaresArgument("sandbox") {
		t.Error("codex-reply does not declare sandbox")
	}

	open := &Tool{Name: "open", InputSchema: json.RawMessage(`{"type":"object"}`)}
	if !open.DeclaresArgument("sandbox") {
		t.Error("schema without properties declares everything")
	}

	closed := &Tool{Name: "status", InputSchema: json.RawMessage(`{"type":"object","additionalProperties":false}`)}
	if closed.DeclaresArgument("sandbox") {
		t.Error("closed schema without properties declares nothing")
	}
	if err := closed.ValidateArguments(nil); err != nil {
		t.Errorf("no arguments should satisfy a closed empty schema: %v", err)
	}
	if err := closed.ValidateArguments(map[string]any{"sandbox": "workspace-write"}); err == nil {
		t.Error("closed schema should reject undeclared arguments")
	}
}
