// Package indexer writes contract units into one field's search indices.
//
// A [BM25Indexer] feeds a unit field into a [store.BM25Index]; a
// [VectorIndexer] embeds the same field and adds it to a [store.VectorStore],
// optionally persisting the vectors to a [store.UnitStore] so later passes
// can reuse them without re-embedding. [HybridIndexer] fans out to both.
//
//	bm25, _ := indexer.NewBM25Indexer(store.FieldBody, indexer.WithStore(sparse))
//	vec, _ := indexer.NewVectorIndexer(store.FieldBody,
//	    indexer.WithEmbedder(embedder),
//	    indexer.WithVectorStore(dense),
//	    indexer.WithEmbeddingStore(units))
//	h, _ := indexer.NewHybridIndexer(indexer.WithBM25(bm25), indexer.WithVector(vec))
//	err := h.Index(ctx, units)
//
// All indexers are safe for concurrent use.
package indexer
