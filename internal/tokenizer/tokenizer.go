// Package tokenizer converts text into model token counts.
//
// A Counter is deterministic and pure: the same text always yields the same count
// for the lifetime of the value. The default implementation is tiktoken with a
// fixed encoding loaded from an embedded vocabulary, so no network is needed.
package tokenizer

import (
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/petasbytes/budgetchat/memory"
)

// DefaultEncoding is the vocabulary used when none is configured.
const DefaultEncoding = "cl100k_base"

// HeuristicEncoding selects the rune-count Heuristic instead of a BPE vocabulary.
const HeuristicEncoding = "heuristic"

// ErrEncodingUnavailable is returned when the encoding vocabulary cannot be loaded.
var ErrEncodingUnavailable = errors.New("tokenizer: encoding unavailable")

// Counter counts the tokens in a piece of text.
type Counter interface {
	Count(text string) int
}

// CountTotal sums Count over the content of every message, regardless of role.
func CountTotal(c Counter, msgs []memory.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.Count(m.Content)
	}
	return total
}

var loaderOnce sync.Once

// Tiktoken counts tokens with a single BPE encoding.
type Tiktoken struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// New loads encoding and returns a Tiktoken bound to it.
func New(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEncodingUnavailable, encoding, err)
	}
	return &Tiktoken{encoding: encoding, enc: enc}, nil
}

// Count returns the number of tokens in text. Special-token markers are
// counted as ordinary text.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Encoding returns the name of the bound vocabulary.
func (t *Tiktoken) Encoding() string { return t.encoding }

// Heuristic approximates tokens as one per rune. Deterministic; used in tests
// and when no vocabulary is wanted.
type Heuristic struct{}

// Count returns the rune count of text.
func (Heuristic) Count(text string) int { return utf8.RuneCountInString(text) }

// ForEncoding returns the Counter for a configured encoding name.
func ForEncoding(encoding string) (Counter, error) {
	if encoding == HeuristicEncoding {
		return Heuristic{}, nil
	}
	return New(encoding)
}
