// Package narration runs the audio stage.
//
// The title and each sentence-bounded chunk of the body are synthesized as
// separate clips with one voice chosen per item, then joined into the item's
// narration file under paths.audio_dir. Clips live in a scratch directory that
// is removed whether or not the stage succeeds.
package narration
