// Package whisperx generates SRT subtitles from narration audio with WhisperX.
//
// The audio is first converted to mono 16 kHz WAV with ffmpeg, then WhisperX
// runs through uvx and writes <name>.srt next to it. Loaded models are
// heavy, so instances are handed out through a Pool and each one serves a
// single transcription at a time.
package whisperx
