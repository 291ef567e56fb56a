package deps

import (
	"clipmill/internal/config"
	"clipmill/internal/services/whisperx"
)

// Requirements lists the external tools the pipeline shells out to.
// Transcription is skipped with --no-subtitles, so uvx is optional there.
func Requirements(cfg *config.Config, subtitlesEnabled bool) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "Joins narration clips and renders videos"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "Measures narration and background durations"},
		{Name: "uvx", Command: whisperx.UVXCommand, Description: "Runs WhisperX transcription", Optional: !subtitlesEnabled},
	}
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}
