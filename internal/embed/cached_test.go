package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder records how many texts reach it.
type countingEmbedder struct {
	*StaticEmbedder
	texts int
	fail  bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.fail {
		return nil, errors.New("backend down")
	}
	c.texts += len(texts)
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_ReusesEmbeddings(t *testing.T) {
	// Given: a cached embedder over a counting embedder
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(16)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	// When: the same title is embedded repeatedly and in a batch
	first, err := c.Embed(ctx, "손해배상")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "손해배상")
	require.NoError(t, err)
	batch, err := c.EmbedBatch(ctx, []string{"손해배상", "계약해지"})
	require.NoError(t, err)

	// Then: each distinct text reaches the inner embedder once
	assert.Equal(t, 2, inner.texts)
	assert.Equal(t, first, batch[0])
	assert.Equal(t, 2, c.Len())
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(16), fail: true}
	c := NewCachedEmbedder(inner, 10)

	_, err := c.Embed(context.Background(), "x")

	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := NewStaticEmbedder(32)
	c := NewCachedEmbedder(inner, 0)

	assert.Equal(t, 32, c.Dimensions())
	assert.Equal(t, "static-32", c.ModelName())
	assert.Same(t, inner, c.Inner())
}
