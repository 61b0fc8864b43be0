package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestStaticEmbedder_DeterministicAndNormalized(t *testing.T) {
	// Given: a static embedder
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	// When: the same clause is embedded twice
	a, err := e.Embed(ctx, "계약의 해지는 서면으로 통지한다")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "계약의 해지는 서면으로 통지한다")
	require.NoError(t, err)

	// Then: vectors are identical and unit length
	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)
}

func TestStaticEmbedder_SimilarClausesAreCloser(t *testing.T) {
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	base, _ := e.Embed(ctx, "Either party may terminate this agreement by written notice")
	near, _ := e.Embed(ctx, "This agreement may be terminated by either party upon written notice")
	far, _ := e.Embed(ctx, "The governing law shall be the laws of Korea")

	assert.Greater(t, cosine(base, near), cosine(base, far))
}

func TestStaticEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(8)

	v, err := e.Embed(context.Background(), "   ")

	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
	assert.Equal(t, "static-8", e.ModelName())
}

func TestStaticEmbedder_ClosedRejects(t *testing.T) {
	e := NewStaticEmbedder(0)
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "x")

	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestRuneNgrams_CountsHangulSyllables(t *testing.T) {
	assert.Equal(t, []string{"계약서", "약서류"}, runeNgrams([]rune("계약서류"), 3))
	assert.Empty(t, runeNgrams([]rune("ab"), 3))
}
