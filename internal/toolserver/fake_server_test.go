package toolserver

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"testing"
	"time"
)

// The test binary doubles as a fake MCP server: when fakeModeEnv is set,
// TestMain serves JSON-RPC on stdio instead of running tests.
const fakeModeEnv = "DAILYFORGE_FAKE_TOOL_SERVER"

// fakePidFileEnv names the file the "orphan" mode writes its detached
// grandchild's pid to.
const fakePidFileEnv = "DAILYFORGE_FAKE_PIDFILE"

// spawnDetached starts a process outside the server's process group that
// inherits its stdout and stderr. Set only where sessions exist.
var spawnDetached func() (int, error)

func TestMain(m *testing.M) {
	if mode := os.Getenv(fakeModeEnv); mode != "" {
		os.Exit(serveFake(mode, os.Stdin, os.Stdout))
	}
	os.Exit(m.Run())
}

// fakeParams launches this test binary as a fake server in the given mode.
func fakeParams(t *testing.T, mode string) Params {
	t.Helper()
	return Params{
		Name:           "fake",
		Command:        os.Args[0],
		Args:           []string{"-test.run=^$"},
		Env:            map[string]string{fakeModeEnv: mode},
		SessionTimeout: 10 * time.Second,
		Stderr:         io.Discard,
	}
}

type fakeMsg struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
		Cursor    string         `json:"cursor"`
	} `json:"params"`
	Error *RPCError `json:"error,omitempty"`
}

func serveFake(mode string, in io.Reader, out io.Writer) int {
	if mode == "crash" {
		fmt.Fprintln(os.Stderr, "dial tcp 127.0.0.1:443: connection refused")
		return 3
	}

	enc := json.NewEncoder(out)
	reply := func(id json.RawMessage, result any) {
		_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
	}
	text := func(s string, isErr bool) map[string]any {
		return map[string]any{
			"content": []map[string]any{{"type": "text", "text": s}},
			"isError": isErr,
		}
	}

	var askID json.RawMessage
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		var msg fakeMsg
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			continue
		}

		// reply from the client to our own request
		if msg.Method == "" && string(msg.ID) == `"srv-1"` {
			code := 0
			if msg.Error != nil {
				code = msg.Error.Code
			}
			reply(askID, text(fmt.Sprintf("client answered with code %d", code), false))
			continue
		}

		switch msg.Method {
		case "initialize":
			reply(msg.ID, map[string]any{
				"protocolVersion": ProtocolVersion,
				"serverInfo":      map[string]any{"name": "fake-codex", "version": "0.1.0"},
				"capabilities":    map[string]any{"tools": map[string]any{}},
			})
		case "notifications/initialized":
			if mode == "orphan" && spawnDetached != nil {
				pid, err := spawnDetached()
				if err != nil {
					fmt.Fprintln(os.Stderr, "spawn:", err)
					return 4
				}
				_ = os.WriteFile(os.Getenv(fakePidFileEnv), []byte(strconv.Itoa(pid)), 0o644)
			}
			_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "method": "notifications/message", "params": map[string]any{"level": "info"}})
		case "tools/list":
			switch mode {
			case "silent":
				continue
			case "exit-after-init":
				return 0
			}
			if msg.Params.Cursor == "" {
				reply(msg.ID, map[string]any{
					"tools": []map[string]any{{
						"name":        "echo",
						"description": "echo arguments back",
						"inputSchema": map[string]any{
							"type":       "object",
							"properties": map[string]any{"prompt": map[string]any{"type": "string"}, "sandbox": map[string]any{"type": "string"}},
							"required":   []string{"prompt"},
						},
					}},
					"nextCursor": "page-2",
				})
				continue
			}
			reply(msg.ID, map[string]any{
				"tools": []map[string]any{{"name": "fail"}, {"name": "ask"}},
			})
		case "tools/call":
			switch mode {
			case "silent":
				continue
			case "exit-after-init":
				return 0
			}
			switch msg.Params.Name {
			case "echo":
				data, _ := json.Marshal(msg.Params.Arguments)
				reply(msg.ID, text(string(data), false))
			case "fail":
				reply(msg.ID, text("tool exploded", true))
			case "ask":
				askID = msg.ID
				_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "id": "srv-1", "method": "roots/list"})
			default:
				_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "id": msg.ID,
					"error": map[string]any{"code": -32602, "message": "unknown tool " + msg.Params.Name}})
			}
		}
	}

	if mode == "linger" {
		// ignore stdin EOF and keep running until killed
		time.Sleep(time.Minute)
	}
	return 0
}
