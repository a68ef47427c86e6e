package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronpaddy/slack-mcp-server/internal/slackclient"
)

func TestMarshalResponseCompact(t *testing.T) {
	prev := outputFormat
	outputFormat = OutputFormatCompact
	t.Cleanup(func() { outputFormat = prev })

	out, err := marshalResponse(ListChannelsResponse{
		Channels: []slackclient.Channel{{ID: "C1", Name: "general"}},
		HasMore:  true,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "# general (C1)")
	assert.Contains(t, out, "more channels available")
}

func TestMarshalResponseJSON(t *testing.T) {
	prev := outputFormat
	outputFormat = OutputFormatJSON
	t.Cleanup(func() { outputFormat = prev })

	out, err := marshalResponse(ListChannelsResponse{
		Channels: []slackclient.Channel{{ID: "C1", Name: "general"}},
	})
	require.NoError(t, err)

	var decoded ListChannelsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "C1", decoded.Channels[0].ID)
}

func TestMarshalResponseFallsBackToJSON(t *testing.T) {
	prev := outputFormat
	outputFormat = OutputFormatCompact
	t.Cleanup(func() { outputFormat = prev })

	// No compact form on the value: JSON is used regardless of the format.
	out, err := marshalResponse(map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, out)
}
