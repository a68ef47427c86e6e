package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronpaddy/slack-mcp-server/internal/slackclient"
)

func readReq(uri string) mcp.ReadResourceRequest {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	return req
}

func textContents(t *testing.T, res []mcp.ResourceContents) mcp.TextResourceContents {
	t.Helper()
	require.Len(t, res, 1)
	tc, ok := res[0].(mcp.TextResourceContents)
	require.True(t, ok)
	return tc
}

func TestChannelURIParts(t *testing.T) {
	tests := []struct {
		uri      string
		id, rest string
		wantErr  bool
	}{
		{uri: "workspace://channels/C1", id: "C1"},
		{uri: "workspace://channels/C1/history", id: "C1", rest: "history"},
		{uri: "workspace://channels/", wantErr: true},
		{uri: "workspace://users/U1", wantErr: true},
		{uri: "nonsense", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			id, rest, err := channelURIParts(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, slackclient.CodeNotFound, slackclient.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestReadChannelsResource(t *testing.T) {
	f := newFakeSlack(t)
	f.respond("conversations.list", `{"ok":true,"channels":[
		{"id":"C1","name":"general","is_general":true},
		{"id":"C2","name":"random"}],
		"response_metadata":{"next_cursor":""}}`)
	s := newTestServer(t, f, true)

	res, err := s.readChannels(context.Background(), readReq(uriChannels))
	require.NoError(t, err)

	tc := textContents(t, res)
	assert.Equal(t, uriChannels, tc.URI)
	assert.Equal(t, "application/json", tc.MIMEType)

	var out ListChannelsResponse
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &out))
	require.Len(t, out.Channels, 2)
	assert.Equal(t, "general", out.Channels[0].Name)
}

func TestReadWorkspaceInfoResource(t *testing.T) {
	f := newFakeSlack(t)
	f.respond("team.info", `{"ok":true,"team":{"id":"T0","name":"Acme","domain":"acme"}}`)
	s := newTestServer(t, f, true)

	res, err := s.readInfo(context.Background(), readReq(uriInfo))
	require.NoError(t, err)

	var out slackclient.Workspace
	require.NoError(t, json.Unmarshal([]byte(textContents(t, res).Text), &out))
	assert.Equal(t, "Acme", out.Name)
}

func TestReadChannelHistoryResource(t *testing.T) {
	f := newFakeSlack(t)
	f.respond("conversations.history", `{"ok":true,"messages":[
		{"type":"message","ts":"1700000001.000100","user":"U1","text":"hello"}],
		"has_more":false}`)
	s := newTestServer(t, f, true)

	res, err := s.readChannelHistory(context.Background(), readReq("workspace://channels/C1/history"))
	require.NoError(t, err)

	var out GetChannelHistoryResponse
	require.NoError(t, json.Unmarshal([]byte(textContents(t, res).Text), &out))
	assert.Equal(t, "C1", out.Channel)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "hello", out.Messages[0].Text)
}

func TestReadChannelHistoryBadSubpath(t *testing.T) {
	f := newFakeSlack(t)
	s := newTestServer(t, f, true)

	_, err := s.readChannelHistory(context.Background(), readReq("workspace://channels/C1/members"))
	require.Error(t, err)
	assert.Equal(t, slackclient.CodeNotFound, slackclient.CodeOf(err))
	assert.EqualValues(t, 0, f.hits.Load())
}

func TestResourceAuthenticationRequired(t *testing.T) {
	f := newFakeSlack(t)
	s := newTestServer(t, f, false)

	h := s.resourceBudget(s.readUsers)
	_, err := h(context.Background(), readReq(uriUsers))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[authentication_required]")
	assert.EqualValues(t, 0, f.hits.Load())
}

func TestResourceTimeoutBudget(t *testing.T) {
	f := newFakeSlack(t)
	s := newTestServer(t, f, true, WithRequestTimeout(20*time.Millisecond))

	slow := func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		select {
		case <-time.After(time.Second):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	_, err := s.resourceBudget(slow)(context.Background(), readReq(uriInfo))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[request_timeout]")
}
