package index

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Aman-CERP/clausecheck/internal/embed"
	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
	"github.com/Aman-CERP/clausecheck/internal/store"
)

// checkEmbeddingModel compares the embedder with the model recorded in the
// unit store. An empty store records the embedder when record is set.
func checkEmbeddingModel(ctx context.Context, units store.UnitStore, embedder embed.Embedder, record bool) error {
	model, err := units.GetState(ctx, store.StateKeyEmbeddingModel)
	if err != nil {
		return cerrors.IOError("failed to read index state", err)
	}
	dimsText, err := units.GetState(ctx, store.StateKeyEmbeddingDimension)
	if err != nil {
		return cerrors.IOError("failed to read index state", err)
	}

	if model == "" {
		if !record {
			return nil
		}
		if err := units.SetState(ctx, store.StateKeyEmbeddingModel, embedder.ModelName()); err != nil {
			return cerrors.IOError("failed to record embedding model", err)
		}
		if err := units.SetState(ctx, store.StateKeyEmbeddingDimension, strconv.Itoa(embedder.Dimensions())); err != nil {
			return cerrors.IOError("failed to record embedding dimension", err)
		}
		return units.SetState(ctx, store.StateKeySchemaVersion, strconv.Itoa(store.CurrentSchemaVersion))
	}

	dims, _ := strconv.Atoi(dimsText)
	if model != embedder.ModelName() || dims != embedder.Dimensions() {
		return cerrors.New(cerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index was built with %s (%d dims), embedder is %s (%d dims)",
				model, dims, embedder.ModelName(), embedder.Dimensions()), nil).
			WithDetail("indexed_model", model).
			WithSuggestion("rebuild with 'clausecheck index --force' or switch the embeddings provider back")
	}
	return nil
}
