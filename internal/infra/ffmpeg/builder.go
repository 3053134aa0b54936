// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"strconv"
	"strings"
)

// Placeholder video track muxed under audio-only sources so media libraries
// still treat the result as a video episode.
const placeholderVideo = "color=s=640x480:r=10"

// mediaTypeTVShow is the iTunes media_type value for a TV show episode.
const mediaTypeTVShow = "10"

// Metadata is the container metadata attached to each remuxed file.
type Metadata struct {
	Show        string
	Title       string
	EpisodeSort int
	Description string
}

// Job describes a single remux from a source URL to a local file.
type Job struct {
	Input  string
	Output string
	Meta   Metadata
}

// IsAudioOnly reports whether the source is a bare audio file that needs a
// synthesized video track.
func IsAudioOnly(url string) bool {
	return strings.HasSuffix(url, "mp3")
}

// IsSegmentedStream reports whether the source is an HLS playlist whose ADTS
// audio needs the aac_adtstoasc bitstream filter when muxed into MP4.
func IsSegmentedStream(url string) bool {
	return strings.HasSuffix(url, "m3u8")
}

// BuildArgs converts a job into ffmpeg arguments. The slice is passed to exec
// directly, so values are never shell quoted.
func BuildArgs(job Job) []string {
	args := []string{"-nostdin", "-hide_banner", "-i", job.Input}

	if IsAudioOnly(job.Input) {
		args = append(args,
			"-f", "lavfi", "-i", placeholderVideo,
			"-c:v", "libx264", "-c:a", "aac", "-shortest",
		)
	} else {
		args = append(args, "-c", "copy")
	}

	if IsSegmentedStream(job.Input) {
		args = append(args, "-bsf:a", "aac_adtstoasc")
	}

	args = append(args,
		"-metadata", "show="+job.Meta.Show,
		"-metadata", "title="+job.Meta.Title,
		"-metadata", "episode_sort="+strconv.Itoa(job.Meta.EpisodeSort),
		"-metadata", "description="+job.Meta.Description,
		"-metadata", "media_type="+mediaTypeTVShow,
		job.Output,
	)
	return args
}
