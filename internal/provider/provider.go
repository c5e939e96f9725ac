// Package provider sends a conversation to a chat-completion endpoint and
// returns the agent's reply, either whole or as a stream of text fragments.
package provider

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/petasbytes/budgetchat/internal/config"
	"github.com/petasbytes/budgetchat/memory"
)

// Provider names accepted by New.
const (
	NameOpenAI    = "openai"
	NameAnthropic = "anthropic"
)

// Request is one completion call over the already-budgeted log.
type Request struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Messages    []memory.Message
}

// Completer is the transport the session loop talks to. Implementations do
// not retry; a failed call is returned to the caller as is.
type Completer interface {
	// Complete returns the full reply in one response.
	Complete(ctx context.Context, req Request) (string, error)
	// Stream yields reply fragments in arrival order. A non-nil error ends the sequence.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}

// New builds the Completer selected by cfg.Provider. A nil client uses
// http.DefaultClient.
func New(cfg config.Config, client *http.Client) (Completer, error) {
	if client == nil {
		client = http.DefaultClient
	}
	switch strings.ToLower(cfg.Provider) {
	case "", NameOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, client), nil
	case NameAnthropic:
		return NewAnthropic(cfg.APIKey, cfg.BaseURL, client), nil
	default:
		return nil, fmt.Errorf("provider: unknown provider %q", cfg.Provider)
	}
}

// Collect drains seq into a single string, copying every fragment to each
// sink as it arrives. It stops at the first error and returns it together
// with what was received so far.
func Collect(seq iter.Seq2[string, error], sinks ...io.Writer) (string, error) {
	var b strings.Builder
	for frag, err := range seq {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
		for _, w := range sinks {
			if _, werr := io.WriteString(w, frag); werr != nil {
				return b.String(), fmt.Errorf("write fragment: %w", werr)
			}
		}
	}
	return b.String(), nil
}
