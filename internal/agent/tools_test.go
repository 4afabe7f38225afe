package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ppiankov/dailyforge/internal/toolserver"
)

func TestFunctionName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"codex", "codex"},
		{"codex-reply", "codex-reply"},
		{"web.search.brave", "web_search_brave"},
		{"", "tool"},
		{strings.Repeat("x", 80), strings.Repeat("x", 64)},
	}
	for _, tt := range tests {
		if got := functionName(tt.in); got != tt.want {
			t.Errorf("functionName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollectTools_DeduplicatesAcrossServers(t *testing.T) {
	a := &fakeToolServer{name: "a", tools: []*toolserver.Tool{{Name: "run"}, {Name: "run.x"}}}
	b := &fakeToolServer{name: "b", tools: []*toolserver.Tool{{Name: "run"}, {Name: "run_x"}}}

	reg, err := collectTools(context.Background(), []ToolServer{a, b})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, d := range reg.defs {
		names = append(names, d.Function.Name)
	}
	if got := strings.Join(names, ","); got != "run,run_x,run_2,run_x_2" {
		t.Errorf("got %s", got)
	}
	if reg.byFunction["run_2"].server != b {
		t.Error("run_2 should be served by b")
	}
	if params, _ := reg.defs[0].Function.Parameters.(json.RawMessage); len(params) == 0 {
		t.Error("tools without schema need an object schema")
	}
}
