package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJaccard(t *testing.T) {
	cases := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "QR code generator library", "qr CODE generator library", 1},
		{"disjoint", "shoe store inventory", "hospital patient records", 0},
		{"half overlap", "alpha beta", "beta gamma", 1.0 / 3.0},
		{"punctuation ignored", "hello, world!", "world hello", 1},
		{"empty side", "", "anything", 0},
		{"both empty", "  ", "...", 0},
		{"unicode words", "sistem informasi perpustakaan", "sistem informasi sekolah", 2.0 / 4.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, Jaccard(tc.a, tc.b), 1e-9)
			require.InDelta(t, Jaccard(tc.a, tc.b), Jaccard(tc.b, tc.a), 1e-12)
		})
	}
}

func TestTokensDeduplicates(t *testing.T) {
	tokens := Tokens("Go go GO snake_case 42")
	require.Len(t, tokens, 3)
	require.Contains(t, tokens, "go")
	require.Contains(t, tokens, "snake_case")
	require.Contains(t, tokens, "42")
}

func TestCosine(t *testing.T) {
	require.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	require.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	require.Zero(t, Cosine([]float32{1}, []float32{1, 2}))
	require.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
	require.Zero(t, Cosine(nil, nil))
}
