// Package index builds and loads the reference indices of a data
// directory and holds them in a Registry keyed by contract type.
//
// Layout of a data directory:
//
//	<data>/units.db                        units, embeddings, documents
//	<data>/<contract>/bm25_body.db         sparse index (or .bleve)
//	<data>/<contract>/bm25_title.db
//	<data>/<contract>/vectors_body.hnsw    dense index (+ .meta)
//	<data>/<contract>/vectors_title.hnsw
//	<data>/.index.lock                     held while building
package index
