// Package subtitles runs the subtitle stage: narrated items are transcribed
// into SRT files under paths.subtitle_dir through a bounded pool of WhisperX
// instances.
package subtitles
