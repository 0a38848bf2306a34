package executor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armatrix/agent-delegation-go/internal/budget"
	"github.com/armatrix/agent-delegation-go/subagent"
)

func TestNew_Kinds(t *testing.T) {
	e, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Simulated{}, e)

	e, err = New(Config{Kind: KindProcess})
	require.NoError(t, err)
	assert.IsType(t, &Process{}, e)

	e, err = New(Config{Kind: KindAnthropic, Anthropic: []AnthropicOption{
		WithClientOptions(option.WithAPIKey("test")),
	}})
	require.NoError(t, err)
	assert.IsType(t, &Anthropic{}, e)

	_, err = New(Config{Kind: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown kind")
}

func TestSimulated_Success(t *testing.T) {
	// latency, tool picks (Read yes, Edit no), invocation extras, failure roll
	rnd := subagent.NewFixedRandSource(0, 0.1, 0.9, 0.9, 0.9, 0.9, 0.99)
	s := NewSimulated(SimulatedConfig{MinLatency: time.Millisecond, MaxLatency: time.Millisecond}, rnd)

	def := subagent.Definition{ID: "w1", Name: "Worker One", Tools: []string{"Read", "Edit", "mcp__gh__*"}}
	res, err := s.Execute(context.Background(), def, subagent.Request{
		Task:          "write docs",
		RequiredTools: []string{"Write"},
		Collaborate:   true,
	})
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.Equal(t, []string{"Write", "Read"}, res.ToolsUsed)
	assert.Equal(t, 2, res.ToolInvocations)
	assert.True(t, res.Collaborated)
	assert.Equal(t, "Worker One completed: write docs", res.Output)
}

func TestSimulated_Failure(t *testing.T) {
	s := NewSimulated(SimulatedConfig{MinLatency: time.Millisecond, MaxLatency: time.Millisecond, FailureRate: 1}, subagent.NewFixedRandSource(0.5))
	res, err := s.Execute(context.Background(), subagent.Definition{ID: "w1"}, subagent.Request{Task: "t"})
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Contains(t, res.Output, "could not complete")
}

func TestSimulated_ContextCancelled(t *testing.T) {
	s := NewSimulated(SimulatedConfig{MinLatency: time.Hour, MaxLatency: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Execute(ctx, subagent.Definition{ID: "w1"}, subagent.Request{Task: "t"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulated_Defaults(t *testing.T) {
	s := NewSimulated(SimulatedConfig{}, nil)
	assert.Equal(t, DefaultMinLatency, s.cfg.MinLatency)
	assert.Equal(t, DefaultMaxLatency, s.cfg.MaxLatency)

	s = NewSimulated(SimulatedConfig{MinLatency: time.Second}, nil)
	assert.Equal(t, time.Second, s.cfg.MaxLatency)
}

func messageServer(t *testing.T, reply string, calls *atomic.Int32, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			_ = json.Unmarshal(body, captured)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const toolReply = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-5",
  "stop_reason": "tool_use",
  "content": [
    {"type": "tool_use", "id": "toolu_01", "name": "report_outcome",
     "input": {"success": true, "output": "component built", "tools_used": ["Read", "Write"], "confidence": 88, "warnings": ["no tests"]}}
  ],
  "usage": {"input_tokens": 1000, "output_tokens": 500}
}`

func TestAnthropic_Execute(t *testing.T) {
	var calls atomic.Int32
	var body map[string]any
	srv := messageServer(t, toolReply, &calls, &body)

	ledger := budget.NewLedger(nil)
	a := NewAnthropic(
		WithLedger(ledger),
		WithClientOptions(option.WithAPIKey("test"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0)),
	)

	def := subagent.Definition{
		ID:           "w2",
		Role:         subagent.RoleFrontendDev,
		Skills:       []string{"react"},
		Instructions: "You build UI components.",
	}
	res, err := a.Execute(context.Background(), def, subagent.Request{Task: "build a react component", Payload: map[string]any{"name": "Button"}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	assert.False(t, res.Failed)
	assert.Equal(t, "component built", res.Output)
	assert.Equal(t, []string{"Read", "Write"}, res.ToolsUsed)
	assert.Equal(t, 2, res.ToolInvocations)
	assert.Equal(t, 88.0, res.Confidence)
	assert.Equal(t, []string{"no tests"}, res.Warnings)
	assert.True(t, res.Cost.IsPositive())
	assert.True(t, res.Cost.Equal(ledger.WorkerCost("w2")))

	assert.Equal(t, string(DefaultModel), body["model"])
	choice, ok := body["tool_choice"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ReportTool, choice["name"])
	system, _ := json.Marshal(body["system"])
	assert.Contains(t, string(system), "You build UI components.")
	msgs, _ := json.Marshal(body["messages"])
	assert.Contains(t, string(msgs), "Button")
}

func TestAnthropic_DefinitionModel(t *testing.T) {
	var calls atomic.Int32
	var body map[string]any
	srv := messageServer(t, toolReply, &calls, &body)

	a := NewAnthropic(WithClientOptions(option.WithAPIKey("test"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0)))
	_, err := a.Execute(context.Background(), subagent.Definition{ID: "w", Model: string(anthropic.ModelClaudeHaiku4_5)}, subagent.Request{Task: "t"})
	require.NoError(t, err)
	assert.Equal(t, string(anthropic.ModelClaudeHaiku4_5), body["model"])
}

func TestAnthropic_ReportedFailure(t *testing.T) {
	reply := strings.Replace(toolReply, `"success": true`, `"success": false`, 1)
	var calls atomic.Int32
	srv := messageServer(t, reply, &calls, nil)

	a := NewAnthropic(WithClientOptions(option.WithAPIKey("test"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0)))
	res, err := a.Execute(context.Background(), subagent.Definition{ID: "w"}, subagent.Request{Task: "t"})
	require.NoError(t, err)
	assert.True(t, res.Failed)
}

func TestAnthropic_NoReport(t *testing.T) {
	reply := `{"id":"msg_02","type":"message","role":"assistant","model":"claude-sonnet-4-5","stop_reason":"end_turn",
	  "content":[{"type":"text","text":"done"}],"usage":{"input_tokens":10,"output_tokens":5}}`
	var calls atomic.Int32
	srv := messageServer(t, reply, &calls, nil)

	a := NewAnthropic(WithClientOptions(option.WithAPIKey("test"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0)))
	_, err := a.Execute(context.Background(), subagent.Definition{ID: "w"}, subagent.Request{Task: "t"})
	assert.ErrorContains(t, err, "did not call report_outcome")
}

func TestAnthropic_SystemPromptPreset(t *testing.T) {
	a := NewAnthropic(WithPreset("reviewer"), WithClientOptions(option.WithAPIKey("test")))
	prompt := a.systemPrompt(subagent.Definition{ID: "cr", Role: subagent.RoleCodeReviewer, Tools: []string{"Read"}})
	assert.Contains(t, prompt, "You are cr (role CodeReviewer).")
	assert.Contains(t, prompt, "You may use: Read.")
	assert.Contains(t, prompt, ReportTool)
}

func TestProcess_Success(t *testing.T) {
	for _, noPTY := range []bool{false, true} {
		p := &Process{NoPTY: noPTY}
		def := subagent.Definition{ID: "sh", Command: []string{"sh", "-c", `echo "$DELEGATOR_WORKER: $DELEGATOR_TASK"`}}
		res, err := p.Execute(context.Background(), def, subagent.Request{Task: "lint"})
		require.NoError(t, err)
		assert.False(t, res.Failed)
		assert.Equal(t, "sh: lint", res.Output)
	}
}

func TestProcess_NonZeroExit(t *testing.T) {
	p := &Process{NoPTY: true}
	def := subagent.Definition{ID: "sh", Command: []string{"sh", "-c", "echo broken; exit 3"}}
	res, err := p.Execute(context.Background(), def, subagent.Request{Task: "t"})
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, []string{"exit status 3"}, res.Warnings)
	assert.Equal(t, "broken", res.Output)
}

func TestProcess_NoCommand(t *testing.T) {
	_, err := NewProcess().Execute(context.Background(), subagent.Definition{ID: "w"}, subagent.Request{Task: "t"})
	assert.ErrorContains(t, err, "has no command")
}

func TestProcess_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p := &Process{NoPTY: true}
	_, err := p.Execute(ctx, subagent.Definition{ID: "w", Command: []string{"sleep", "5"}}, subagent.Request{Task: "t"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFunc(t *testing.T) {
	fn := Func(NewSimulated(SimulatedConfig{MinLatency: time.Millisecond, MaxLatency: time.Millisecond}, subagent.NewFixedRandSource(0.99)))
	res, err := fn(context.Background(), subagent.Definition{ID: "w"}, subagent.Request{Task: "t"})
	require.NoError(t, err)
	assert.False(t, res.Failed)
}
