// Package services defines shared utilities consumed by the stage handlers and
// external collaborator adapters.
//
// Key responsibilities:
//   - Context helpers that stamp item fingerprints, stage names, run IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap and Details helpers so every
//     collaborator returns either an artifact or a typed failure.
//
// Adapters for content sources, speech synthesis, transcription, compositing,
// and publishing live in subpackages.
package services
