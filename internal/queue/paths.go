package queue

import "path/filepath"

// Artifacts are addressed by fingerprint; the record itself never stores paths.

// AudioPath returns the narration file for the item under dir.
func (i *Item) AudioPath(dir string) string {
	return filepath.Join(dir, i.ID+".mp3")
}

// SubtitlePath returns the SRT file for the item under dir.
func (i *Item) SubtitlePath(dir string) string {
	return filepath.Join(dir, i.ID+".srt")
}

// VideoPath returns the full-length composed video for the item under dir.
func (i *Item) VideoPath(dir string) string {
	return filepath.Join(dir, i.ID+".mp4")
}

// PartsDir returns the directory holding the item's numbered video segments.
func (i *Item) PartsDir(dir string) string {
	return filepath.Join(dir, i.ID+"_parts")
}

// ClipDir returns the scratch directory for per-chunk narration clips.
func (i *Item) ClipDir(dir string) string {
	return filepath.Join(dir, i.ID+"_clips")
}
