package toolserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// ProtocolVersion is the MCP revision sent during initialize.
const ProtocolVersion = "2025-06-18"

// maxMessageSize bounds one JSON-RPC line. Codex tool results carry whole
// agent transcripts, so this is far above bufio's default.
const maxMessageSize = 32 * 1024 * 1024

// closeGrace is how long Close waits for the server to exit on its own after
// stdin is closed before killing its process group.
const closeGrace = 2 * time.Second

// killGrace bounds how long Close waits for the pipes to drain after the kill.
// A descendant outside the process group can hold them open indefinitely.
const killGrace = time.Second

// ErrClosed is returned by calls made after the channel to the tool server
// is gone, whether because Close was called or the process exited.
var ErrClosed = errors.New("tool server closed")

// Params describes how to launch a stdio tool server.
type Params struct {
	Name    string
	Command string
	Args    []string
	Dir     string

	// Env entries are added to the sanitized parent environment.
	Env map[string]string
	// AllowEnv names credential variables that survive sanitizing.
	AllowEnv []string

	// SessionTimeout is both the stdout idle timeout and the per-request
	// timeout. Zero disables both.
	SessionTimeout time.Duration

	// Stderr receives the server's stderr. Defaults to os.Stderr.
	Stderr io.Writer

	ClientName    string
	ClientVersion string
}

// ServerInfo is what the tool server reported about itself in initialize.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Server is a running tool server process and its JSON-RPC channel.
// It is owned by one caller and must be released with Close.
type Server struct {
	name    string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *idleReader
	pipe    io.ReadCloser
	stderr  *stderrScanner
	timeout time.Duration
	kill    context.CancelFunc

	info            ServerInfo
	protocolVersion string

	writeMu sync.Mutex
	nextID  atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan *rpcMessage
	err     error

	streamDone chan struct{} // stdout reached EOF or failed
	exited     chan struct{} // cmd.Wait returned
	waitErr    error

	closeOnce sync.Once
	closeErr  error
}

// Start launches the tool server and completes the MCP initialize handshake.
// On any failure the process is already gone when Start returns.
func Start(ctx context.Context, p Params) (*Server, error) {
	if p.Command == "" {
		return nil, errors.New("tool server command is empty")
	}
	name := p.Name
	if name == "" {
		name = p.Command
	}

	// The process outlives ctx: ctx only bounds the handshake. Its lifetime
	// ends with Close or the idle watchdog.
	procCtx, kill := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, p.Command, p.Args...)
	setupProcessGroup(cmd)
	cmd.Dir = p.Dir
	cmd.Env = buildEnv(SanitizedEnv(p.AllowEnv...), p.Env)
	cmd.WaitDelay = killGrace

	errOut := p.Stderr
	if errOut == nil {
		errOut = os.Stderr
	}
	stderr := newStderrScanner(errOut)
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		kill()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		kill()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	slog.Debug("spawning tool server", "name", name, "command", p.Command, "args", p.Args)
	if err := cmd.Start(); err != nil {
		kill()
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	s := &Server{
		name:       name,
		cmd:        cmd,
		stdin:      stdin,
		pipe:       stdout,
		stderr:     stderr,
		timeout:    p.SessionTimeout,
		kill:       kill,
		pending:    make(map[int64]chan *rpcMessage),
		streamDone: make(chan struct{}),
		exited:     make(chan struct{}),
	}
	s.stdout = newIdleReader(stdout, p.SessionTimeout, func(last time.Time) {
		slog.Warn("tool server idle timeout, killing", "name", name,
			"timeout", p.SessionTimeout, "last_output", last.Format(time.TimeOnly))
		kill()
	})
	go s.readLoop()

	if err := s.initialize(ctx, p); err != nil {
		// Close reaps the child, so stderr is complete afterwards
		_ = s.Close()
		return nil, s.describe(fmt.Errorf("initialize %s: %w", name, err))
	}

	slog.Debug("tool server ready", "name", name, "pid", cmd.Process.Pid,
		"server", s.info.Name, "server_version", s.info.Version, "protocol", s.protocolVersion)
	return s, nil
}

// Name returns the configured display name.
func (s *Server) Name() string { return s.name }

// Info returns the server's self-reported identity.
func (s *Server) Info() ServerInfo { return s.info }

// Pid returns the process id of the direct child.
func (s *Server) Pid() int { return s.cmd.Process.Pid }

// Running reports whether the child process has not exited yet.
func (s *Server) Running() bool {
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// Close shuts the server down: stdin is closed so a well-behaved server can
// exit, and after a short grace period the whole process group is killed.
// Close is idempotent and safe to call after the process died.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if err := s.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.closeErr = fmt.Errorf("close stdin: %w", err)
		}

		timer := time.NewTimer(closeGrace)
		select {
		case <-s.exited:
		case <-timer.C:
			slog.Debug("tool server still running after stdin close", "name", s.name)
		}
		timer.Stop()

		// Kill the group even after a clean exit: grandchildren may linger.
		s.kill()
		timer.Reset(killGrace)
		select {
		case <-s.exited:
		case <-timer.C:
			// something outside the group still holds stdout; unblock readLoop
			slog.Debug("tool server stdout still open after kill", "name", s.name)
			_ = s.pipe.Close()
			<-s.exited
		}
		timer.Stop()
		s.stdout.Stop()
		slog.Debug("tool server stopped", "name", s.name, "exit", s.waitErr)
	})
	return s.closeErr
}

func (s *Server) initialize(ctx context.Context, p Params) error {
	clientName, clientVersion := p.ClientName, p.ClientVersion
	if clientName == "" {
		clientName = "dailyforge"
	}
	if clientVersion == "" {
		clientVersion = "dev"
	}

	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	}
	var res struct {
		ProtocolVersion string     `json:"protocolVersion"`
		ServerInfo      ServerInfo `json:"serverInfo"`
	}
	if err := s.call(ctx, "initialize", params, &res); err != nil {
		return err
	}
	s.info = res.ServerInfo
	s.protocolVersion = res.ProtocolVersion

	return s.notify("notifications/initialized", nil)
}

// call sends one request and waits for its response.
func (s *Server) call(ctx context.Context, method string, params, out any) error {
	id := s.nextID.Add(1)
	ch := make(chan *rpcMessage, 1)

	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return err
	}
	s.pending[id] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.send(rpcRequest{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case msg := <-ch:
		return decodeResult(method, msg, out)
	case <-s.streamDone:
		// a response may have landed just before the stream ended
		select {
		case msg := <-ch:
			return decodeResult(method, msg, out)
		default:
		}
		return s.streamErr()
	case <-ctx.Done():
		_ = s.notify("notifications/cancelled", map[string]any{
			"requestId": id,
			"reason":    ctx.Err().Error(),
		})
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func decodeResult(method string, msg *rpcMessage, out any) error {
	if msg.Error != nil {
		return fmt.Errorf("%s: %w", method, msg.Error)
	}
	if out == nil || len(msg.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (s *Server) notify(method string, params any) error {
	return s.send(rpcRequest{JSONRPC: jsonrpcVersion, Method: method, Params: params})
}

func (s *Server) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.stdin.Write(data); err != nil {
		// any write failure on a pipe leaves the channel unusable
		return fmt.Errorf("%w: write: %v", ErrClosed, err)
	}
	return nil
}

// readLoop demultiplexes stdout until EOF, then reaps the process.
func (s *Server) readLoop() {
	sc := bufio.NewScanner(s.stdout)
	sc.Buffer(make([]byte, 64*1024), maxMessageSize)

	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			slog.Debug("unparseable tool server line", "name", s.name, "error", err)
			continue
		}
		s.dispatch(&msg)
	}

	readErr := sc.Err()
	s.mu.Lock()
	switch {
	case s.stdout.Idled():
		s.err = fmt.Errorf("%w: no output for %s, last at %s",
			ErrClosed, s.timeout, s.stdout.LastActivity().Format(time.TimeOnly))
	case readErr != nil:
		s.err = fmt.Errorf("%w: read: %v", ErrClosed, readErr)
	default:
		s.err = ErrClosed
	}
	s.mu.Unlock()
	close(s.streamDone)

	s.waitErr = s.cmd.Wait()
	close(s.exited)
}

func (s *Server) dispatch(msg *rpcMessage) {
	switch {
	case msg.isResponse():
		var id int64
		if err := json.Unmarshal(msg.ID, &id); err != nil {
			slog.Debug("response with foreign id", "name", s.name, "id", string(msg.ID))
			return
		}
		s.mu.Lock()
		ch, ok := s.pending[id]
		s.mu.Unlock()
		if !ok {
			slog.Debug("response for unknown request", "name", s.name, "id", id)
			return
		}
		select {
		case ch <- msg:
		default:
			slog.Debug("duplicate response", "name", s.name, "id", id)
		}

	case msg.isRequest():
		s.answer(msg)

	case msg.Method != "":
		slog.Debug("tool server notification", "name", s.name, "method", msg.Method)
	}
}

// answer replies to server-initiated requests. Only ping is supported; this
// client advertises no capabilities, so sampling, roots and elicitation
// requests are refused.
func (s *Server) answer(msg *rpcMessage) {
	resp := rpcResponse{JSONRPC: jsonrpcVersion, ID: msg.ID}
	if msg.Method == "ping" {
		resp.Result = map[string]any{}
	} else {
		slog.Debug("refusing tool server request", "name", s.name, "method", msg.Method)
		resp.Error = &RPCError{Code: codeMethodNotFound, Message: "method not found: " + msg.Method}
	}
	go func() {
		if err := s.send(resp); err != nil {
			slog.Debug("reply to tool server request failed", "name", s.name, "error", err)
		}
	}()
}

func (s *Server) streamErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// explain adds stderr context to errors caused by a dead channel. The child
// is given a moment to be reaped so its last stderr output is captured.
func (s *Server) explain(err error) error {
	if !errors.Is(err, ErrClosed) {
		return err
	}
	timer := time.NewTimer(500 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-s.exited:
	case <-timer.C:
	}
	return s.describe(err)
}

// describe decorates err with what the server printed on stderr.
func (s *Server) describe(err error) error {
	if reason := s.stderr.Reason(); reason != "" {
		err = fmt.Errorf("%w (%s)", err, reason)
	}
	if tail := s.stderr.Tail(); tail != "" {
		err = fmt.Errorf("%w; stderr: %s", err, tail)
	}
	return err
}
