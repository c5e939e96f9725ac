package tokenizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/budgetchat/internal/tokenizer"
	"github.com/petasbytes/budgetchat/memory"
)

func newCL100k(t *testing.T) *tokenizer.Tiktoken {
	t.Helper()
	tk, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	return tk
}

func TestTiktoken_KnownCounts(t *testing.T) {
	tk := newCL100k(t)

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"You are a helpful chef.", 6},
		{"What's for dinner tonight please chef?", 8},
		{"hello world", 2},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, tk.Count(tt.text))
		})
	}
}

func TestTiktoken_Deterministic(t *testing.T) {
	tk := newCL100k(t)
	text := "오늘 저녁 메뉴 추천해 주세요 🍜"
	first := tk.Count(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, tk.Count(text))
	}

	other := newCL100k(t)
	assert.Equal(t, first, other.Count(text), "separate instances share the vocabulary")
}

func TestTiktoken_SpecialTokenTextIsCounted(t *testing.T) {
	tk := newCL100k(t)
	assert.NotPanics(t, func() { tk.Count("<|endoftext|>") })
	assert.Positive(t, tk.Count("<|endoftext|>"))
}

func TestNew_UnknownEncoding(t *testing.T) {
	_, err := tokenizer.New("no_such_base")
	require.ErrorIs(t, err, tokenizer.ErrEncodingUnavailable)
}

func TestNew_EmptyEncodingUsesDefault(t *testing.T) {
	tk, err := tokenizer.New("")
	require.NoError(t, err)
	assert.Equal(t, tokenizer.DefaultEncoding, tk.Encoding())
}

func TestCountTotal_SumsContentIgnoringRole(t *testing.T) {
	h := tokenizer.Heuristic{}
	msgs := []memory.Message{
		memory.System("abc"),
		memory.User("de"),
		memory.Assistant("üf"),
	}
	assert.Equal(t, 3+2+2, tokenizer.CountTotal(h, msgs))
	assert.Equal(t, 0, tokenizer.CountTotal(h, nil))
}

func TestForEncoding(t *testing.T) {
	c, err := tokenizer.ForEncoding(tokenizer.HeuristicEncoding)
	require.NoError(t, err)
	assert.IsType(t, tokenizer.Heuristic{}, c)

	c, err = tokenizer.ForEncoding(tokenizer.DefaultEncoding)
	require.NoError(t, err)
	assert.IsType(t, &tokenizer.Tiktoken{}, c)
}
