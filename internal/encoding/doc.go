// Package encoding runs the video stage.
//
// Items with narration and subtitles are composed over a background clip and
// split into numbered segments under <paths.video_dir>/<id>_parts. The
// segment directory is rebuilt from scratch on every attempt, so a failed
// render never leaves a partial set that the publish stage could pick up.
package encoding
