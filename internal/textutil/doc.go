// Package textutil provides text processing helpers for ingestion and output.
//
// The primary use cases are:
//   - Normalizing titles, bodies, and author names before fingerprinting
//   - Matching blocked words during ingestion
//   - Shortening titles and digests for listings and publish metadata
//   - Sanitizing filenames and path segments for safe filesystem use
package textutil
