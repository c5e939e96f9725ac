package provider

import (
	"context"
	"iter"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/petasbytes/budgetchat/memory"
)

// Anthropic talks to the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic returns a client; an empty baseURL keeps the SDK default.
func NewAnthropic(apiKey, baseURL string, hc *http.Client) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	return &Anthropic{client: anthropic.NewClient(opts...)}
}

// params lifts system messages into the System field; the API has no system
// role. Assistant messages ahead of the first user message are dropped, since
// the API requires the conversation to open with a user turn.
func (a *Anthropic) params(req Request) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case memory.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case memory.RoleAssistant:
			if len(msgs) == 0 {
				continue
			}
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    msgs,
		System:      system,
		Temperature: anthropic.Float(req.Temperature),
	}
}

// Complete joins the text blocks of the reply.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	msg, err := a.client.Messages.New(ctx, a.params(req))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String(), nil
}

// Stream yields text deltas; other events are ignored.
func (a *Anthropic) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := a.client.Messages.NewStreaming(ctx, a.params(req))
		defer stream.Close()

		for stream.Next() {
			ev, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			d, ok := ev.Delta.AsAny().(anthropic.TextDelta)
			if !ok || d.Text == "" {
				continue
			}
			if !yield(d.Text, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", err)
		}
	}
}
