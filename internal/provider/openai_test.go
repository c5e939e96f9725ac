package provider_test

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/budgetchat/internal/provider"
)

const openAICompletion = `{
  "id": "cmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "llama",
  "choices": [
    {"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Tiramisu."}}
  ]
}`

func openAIChunk(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "cmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "llama",
		"choices": []any{map[string]any{
			"index":         0,
			"delta":         map[string]any{"content": content},
			"finish_reason": nil,
		}},
	})
	return string(b)
}

type openAIBody struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestOpenAI_Complete(t *testing.T) {
	capReq := &capture{}
	rt := &fakeTransport{status: 200, body: openAICompletion, captured: capReq}
	c := provider.NewOpenAI("test-key", "", httpClient(rt))

	got, err := c.Complete(context.Background(), chefRequest("llama"))
	require.NoError(t, err)
	assert.Equal(t, "Tiramisu.", got)

	u, err := url.Parse(capReq.url)
	require.NoError(t, err)
	assert.Equal(t, "api.together.xyz", u.Host)
	assert.Equal(t, "/v1/chat/completions", u.Path)
	assert.Equal(t, "Bearer test-key", capReq.header.Get("Authorization"))

	var body openAIBody
	require.NoError(t, json.Unmarshal(capReq.body, &body), "body=%s", capReq.body)
	assert.Equal(t, "llama", body.Model)
	assert.InDelta(t, 0.1, body.Temperature, 1e-9)
	assert.False(t, body.Stream)
	require.Len(t, body.Messages, 4)
	wantRoles := []string{"system", "user", "assistant", "user"}
	for i, m := range body.Messages {
		assert.Equal(t, wantRoles[i], m.Role, "message %d", i)
	}
	assert.Equal(t, "You are a helpful chef.", body.Messages[0].Content)
	assert.Equal(t, "And dessert?", body.Messages[3].Content)
}

func TestOpenAI_CustomBaseURL(t *testing.T) {
	capReq := &capture{}
	rt := &fakeTransport{status: 200, body: openAICompletion, captured: capReq}
	c := provider.NewOpenAI("k", "https://llm.internal.example/api/", httpClient(rt))

	_, err := c.Complete(context.Background(), chefRequest("llama"))
	require.NoError(t, err)
	assert.Equal(t, "https://llm.internal.example/api/chat/completions", capReq.url)
}

func TestOpenAI_CompleteNoChoices(t *testing.T) {
	rt := &fakeTransport{status: 200, body: `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`}
	c := provider.NewOpenAI("k", "", httpClient(rt))

	_, err := c.Complete(context.Background(), chefRequest("m"))
	require.Error(t, err)
}

func TestOpenAI_CompleteHTTPError(t *testing.T) {
	rt := &fakeTransport{status: 503, body: `{"error":{"message":"overloaded","type":"server_error"}}`}
	c := provider.NewOpenAI("k", "", httpClient(rt))

	_, err := c.Complete(context.Background(), chefRequest("m"))
	require.Error(t, err)
	assert.Equal(t, 1, rt.calls, "failed calls are not retried")
}

func TestOpenAI_Stream(t *testing.T) {
	capReq := &capture{}
	body := sse(
		[2]string{"", openAIChunk("Tira")},
		[2]string{"", openAIChunk("")},
		[2]string{"", openAIChunk("misu.")},
		[2]string{"", "[DONE]"},
	)
	rt := &fakeTransport{status: 200, contentType: "text/event-stream", body: body, captured: capReq}
	c := provider.NewOpenAI("k", "", httpClient(rt))

	var frags []string
	for s, err := range c.Stream(context.Background(), chefRequest("llama")) {
		require.NoError(t, err)
		frags = append(frags, s)
	}
	assert.Equal(t, []string{"Tira", "misu."}, frags)

	var req openAIBody
	require.NoError(t, json.Unmarshal(capReq.body, &req))
	assert.True(t, req.Stream)
}

func TestOpenAI_StreamEarlyStop(t *testing.T) {
	body := sse(
		[2]string{"", openAIChunk("one")},
		[2]string{"", openAIChunk("two")},
		[2]string{"", "[DONE]"},
	)
	rt := &fakeTransport{status: 200, contentType: "text/event-stream", body: body}
	c := provider.NewOpenAI("k", "", httpClient(rt))

	var frags []string
	for s := range c.Stream(context.Background(), chefRequest("llama")) {
		frags = append(frags, s)
		break
	}
	assert.Equal(t, []string{"one"}, frags)
}

func TestOpenAI_StreamHTTPError(t *testing.T) {
	rt := &fakeTransport{status: 401, body: `{"error":{"message":"no key"}}`}
	c := provider.NewOpenAI("k", "", httpClient(rt))

	got, err := provider.Collect(c.Stream(context.Background(), chefRequest("llama")))
	require.Error(t, err)
	assert.Empty(t, got)
}
