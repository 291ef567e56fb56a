// Package chunker splits narration text into sentence-aligned pieces small
// enough for a single speech-synthesis request.
package chunker
