// Package rag implements the retrieval core for recall: chunked note
// ingestion, retrieve-then-rerank search and neighbor context expansion.
//
// # Overview
//
// Notes are split into overlapping chunks, embedded and stored in the chunk
// store. Search embeds the query, pulls a fixed candidate pool by vector
// distance, optionally rescores it with a reranker, and expands each winner
// with its neighboring chunks so callers receive readable context instead of
// isolated fragments.
//
// # Architecture
//
//	Service (note lifecycle)
//	     |
//	     +-- chunk.Split (boundary-respecting chunking)
//	     +-- embed.Embedder (concurrent batch embedding)
//	     +-- ChunkStore (PostgreSQL + pgvector)
//	     |
//	     v
//	Retriever (retrieve-then-rerank)
//	     |
//	     +-- candidate pool by cosine distance
//	     +-- optional Reranker rescoring (silent fallback on failure)
//	     |
//	     v
//	Expander (single batched neighbor fetch, context merge)
//
// # Thread Safety
//
// Service, Retriever and Expander are safe for concurrent use.
package rag
