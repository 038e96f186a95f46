package tokenizer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/casegraph/pkg/tokenizer"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		minExpect int
		maxExpect int
	}{
		{"empty", "", 0, 0},
		{"single word", "hello", 1, 3},
		{"short sentence", "The witness saw a red sedan leave the lot", 5, 15},
		{"longer text", strings.Repeat("word ", 100), 80, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := tokenizer.EstimateTokens(tt.text)
			assert.GreaterOrEqual(t, tokens, tt.minExpect)
			assert.LessOrEqual(t, tokens, tt.maxExpect)
		})
	}
}

func TestTruncateToTokenBudget(t *testing.T) {
	text := strings.Repeat("statement ", 200)
	out := tokenizer.TruncateToTokenBudget(text, 20)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Less(t, len(out), len(text))

	assert.Equal(t, "", tokenizer.TruncateToTokenBudget(text, 0))
	assert.Equal(t, "short", tokenizer.TruncateToTokenBudget("short", 100))
}

func TestSplitParagraphs_SmallTextIsOnePiece(t *testing.T) {
	pieces := tokenizer.SplitParagraphs("One paragraph only.", 100)
	require.Len(t, pieces, 1)
	assert.Equal(t, "One paragraph only.", pieces[0])
}

func TestSplitParagraphs_RespectsBudget(t *testing.T) {
	para := strings.Repeat("The officer recorded the scene. ", 10)
	text := strings.Join([]string{para, para, para, para}, "\n\n")

	pieces := tokenizer.SplitParagraphs(text, 80)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.LessOrEqual(t, tokenizer.EstimateTokens(p), 80)
	}
	joined := strings.Join(pieces, " ")
	assert.Equal(t, strings.Count(text, "officer"), strings.Count(joined, "officer"))
}

func TestSplitParagraphs_Empty(t *testing.T) {
	assert.Nil(t, tokenizer.SplitParagraphs("  \n ", 10))
}
