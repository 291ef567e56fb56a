// Package compose renders narrated short videos with ffmpeg.
//
// A background clip is picked at random from the backgrounds directory, cut
// at a random offset long enough to cover the narration, overlaid with the
// narration audio, burned with the subtitle track, and finally split into
// fixed-length segments. The same ffmpeg wrapper also joins synthesized
// narration clips into one audio file.
package compose
