package text

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testTokenizer     *Tokenizer
	testTokenizerOnce sync.Once
)

// The dictionary load is expensive; share one tokenizer across tests.
func getTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	testTokenizerOnce.Do(func() {
		tk, err := NewTokenizer()
		require.NoError(t, err)
		testTokenizer = tk
	})
	return testTokenizer
}

func TestTokenizeJapanese(t *testing.T) {
	tk := getTokenizer(t)
	tokens := tk.Tokenize("こんにちは世界")

	require.NotEmpty(t, tokens)
	surfaces := make([]string, len(tokens))
	for i, tok := range tokens {
		surfaces[i] = tok.Surface
	}
	assert.Contains(t, surfaces, "こんにちは")
	assert.Contains(t, surfaces, "世界")
}

func TestTokenizeSpansTileInput(t *testing.T) {
	tk := getTokenizer(t)
	input := "東京に行く。"
	tokens := tk.Tokenize(input)

	require.NotEmpty(t, tokens)
	var pos uint32
	for _, tok := range tokens {
		assert.Equal(t, pos, tok.Span.Start, "token %q", tok.Surface)
		assert.Equal(t, input[tok.Span.Start:tok.Span.End], tok.Surface)
		pos = tok.Span.End
	}
	assert.Equal(t, uint32(len(input)), pos)
}

func TestTokenizeEmpty(t *testing.T) {
	tk := getTokenizer(t)
	assert.Empty(t, tk.Tokenize(""))
}

func TestTokenizePOSPresent(t *testing.T) {
	tk := getTokenizer(t)
	tokens := tk.Tokenize("走る")

	require.NotEmpty(t, tokens)
	assert.NotEmpty(t, tokens[0].POS)
}

func TestTokenizeConcurrent(t *testing.T) {
	tk := getTokenizer(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				tk.Tokenize("私は学生です。")
			}
		}()
	}
	wg.Wait()
}
