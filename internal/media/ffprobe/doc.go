// Package ffprobe wraps ffprobe inspections used to size background clips
// against narration audio.
package ffprobe
