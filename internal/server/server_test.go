package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/aaronpaddy/slack-mcp-server/internal/creds"
	"github.com/aaronpaddy/slack-mcp-server/internal/slackclient"
)

// fakeSlack is an httptest-backed Slack Web API double.
type fakeSlack struct {
	srv  *httptest.Server
	mux  *http.ServeMux
	hits atomic.Int64
}

func newFakeSlack(t *testing.T) *fakeSlack {
	t.Helper()
	f := &fakeSlack{mux: http.NewServeMux()}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSlack) respond(method, body string) {
	f.mux.HandleFunc("/api/"+method, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	})
}

func newTestServer(t *testing.T, f *fakeSlack, authenticated bool, opts ...ServerOption) *Server {
	t.Helper()
	store := creds.NewStore()
	if authenticated {
		store.Set(creds.Credential{AccessToken: "xoxb-test", ObtainedAt: time.Now().UTC()})
	}
	client := slackclient.New(store,
		slackclient.WithAPIURL(f.srv.URL+"/api/"),
		slackclient.WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		slackclient.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	opts = append([]ServerOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return New(client, opts...)
}

func callTool(t *testing.T, s *Server, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err, "dispatch never surfaces raw errors")
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestToolAuthenticationRequired(t *testing.T) {
	f := newFakeSlack(t)
	s := newTestServer(t, f, false)

	h := s.withBudget(mcp.NewTypedToolHandler(s.handleListChannels))
	res := callTool(t, s, h, map[string]any{})

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "[authentication_required]")
	assert.EqualValues(t, 0, f.hits.Load(), "unauthenticated calls must not reach Slack")
}

func TestToolInvalidArgumentsBeforeNetwork(t *testing.T) {
	f := newFakeSlack(t)
	s := newTestServer(t, f, true)

	tests := []struct {
		name string
		h    func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args map[string]any
		want string
	}{
		{
			name: "post_message missing channel",
			h:    s.withBudget(mcp.NewTypedToolHandler(s.handlePostMessage)),
			args: map[string]any{"text": "hi"},
			want: `"channel"`,
		},
		{
			name: "post_message missing text",
			h:    s.withBudget(mcp.NewTypedToolHandler(s.handlePostMessage)),
			args: map[string]any{"channel": "C1"},
			want: `"text"`,
		},
		{
			name: "post_message bad thread_ts",
			h:    s.withBudget(mcp.NewTypedToolHandler(s.handlePostMessage)),
			args: map[string]any{"channel": "C1", "text": "hi", "thread_ts": "yesterday"},
			want: `"thread_ts"`,
		},
		{
			name: "history bad oldest",
			h:    s.withBudget(mcp.NewTypedToolHandler(s.handleGetChannelHistory)),
			args: map[string]any{"channel": "C1", "oldest": "not-a-ts"},
			want: `"oldest"`,
		},
		{
			name: "history negative limit",
			h:    s.withBudget(mcp.NewTypedToolHandler(s.handleGetChannelHistory)),
			args: map[string]any{"channel": "C1", "limit": -5},
			want: `"limit"`,
		},
		{
			name: "user info missing id",
			h:    s.withBudget(mcp.NewTypedToolHandler(s.handleGetUserInfo)),
			args: map[string]any{},
			want: `"user_id"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, s, tt.h, tt.args)
			assert.True(t, res.IsError)
			text := resultText(t, res)
			assert.Contains(t, text, "[invalid_arguments]")
			assert.Contains(t, text, tt.want, "failure must name the offending parameter")
		})
	}
	assert.EqualValues(t, 0, f.hits.Load(), "validation failures must not reach Slack")
}

func TestToolNotFoundChannelName(t *testing.T) {
	f := newFakeSlack(t)
	f.respond("conversations.list", `{"ok":true,"channels":[
		{"id":"C1","name":"general"}],
		"response_metadata":{"next_cursor":""}}`)
	s := newTestServer(t, f, true)

	h := s.withBudget(mcp.NewTypedToolHandler(s.handlePostMessage))
	res := callTool(t, s, h, map[string]any{"channel": "#doesnotexist", "text": "hi"})

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "[not_found]")
}

func TestListChannelsLimitClamped(t *testing.T) {
	f := newFakeSlack(t)
	var sb strings.Builder
	sb.WriteString(`{"ok":true,"channels":[`)
	for i := 0; i < 1100; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"id":"C%04d","name":"chan%04d"}`, i, i)
	}
	sb.WriteString(`],"response_metadata":{"next_cursor":""}}`)
	f.respond("conversations.list", sb.String())
	s := newTestServer(t, f, true)

	res, err := s.handleListChannels(context.Background(), mcp.CallToolRequest{}, ListChannelsRequest{Limit: 5000})
	require.NoError(t, err)

	text := resultText(t, res)
	assert.Contains(t, text, "Channels (1000):", "over-cap limits are clamped")
	assert.Contains(t, text, "more channels available")
}

func TestPostMessageSuccess(t *testing.T) {
	f := newFakeSlack(t)
	f.respond("chat.postMessage", `{"ok":true,"channel":"C1","ts":"1700000002.000100"}`)
	s := newTestServer(t, f, true)

	res, err := s.handlePostMessage(context.Background(), mcp.CallToolRequest{}, PostMessageRequest{
		Channel: "C1",
		Text:    "hello",
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "1700000002.000100")
}

func TestGetChannelHistoryDefaults(t *testing.T) {
	f := newFakeSlack(t)
	f.respond("conversations.history", `{"ok":true,"messages":[
		{"type":"message","ts":"1700000001.000100","user":"U1","text":"hi"}],
		"has_more":false}`)
	s := newTestServer(t, f, true)

	res, err := s.handleGetChannelHistory(context.Background(), mcp.CallToolRequest{}, GetChannelHistoryRequest{
		Channel: "C1",
	})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "hi")
}

func TestRequestTimeoutBudget(t *testing.T) {
	f := newFakeSlack(t)
	s := newTestServer(t, f, true, WithRequestTimeout(20*time.Millisecond))

	slow := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		select {
		case <-time.After(time.Second):
			return mcp.NewToolResultText("too late"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	res, err := s.withBudget(slow)(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "[request_timeout]")
}

func TestErrorResultHidesInternals(t *testing.T) {
	f := newFakeSlack(t)
	s := newTestServer(t, f, true)

	res := s.errorResult(context.Background(), slackclient.Mismatch("decode conversations.list", fmt.Errorf("unexpected end of JSON input at offset 1337")))
	text := resultText(t, res)
	assert.Contains(t, text, "[protocol_mismatch] internal error")
	assert.NotContains(t, text, "1337", "raw internal detail must not leak")
}

func TestErrorResultUnknownFallsBackToInternal(t *testing.T) {
	f := newFakeSlack(t)
	s := newTestServer(t, f, true)

	res := s.errorResult(context.Background(), fmt.Errorf("surprise"))
	assert.Contains(t, resultText(t, res), "[internal_error]")
}

func TestValidTS(t *testing.T) {
	tests := []struct {
		ts string
		ok bool
	}{
		{"1609459200.000001", true},
		{"1609459200", true},
		{"0.0", true},
		{"", false},
		{"yesterday", false},
		{"1609459200.", false},
		{".000001", false},
		{"-1609459200.000001", false},
		{"1609459200.00a", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, validTS(tt.ts), "ts %q", tt.ts)
	}
}

func TestDefaultLimit(t *testing.T) {
	assert.Equal(t, defHistoryLimit, defaultLimit(0, defHistoryLimit))
	assert.Equal(t, 7, defaultLimit(7, defListLimit))
	assert.Equal(t, maxLimit, defaultLimit(5000, defListLimit))
}
