package gateway

import (
	"fmt"
	"sort"
	"strings"
)

// BuildMasterPlaylist renders an HLS master playlist for v's bitrate ladder.
// The rung nearest to current is listed first so players start on it; the
// remaining rungs follow in ascending order. Each variant points at
// "<bitrate>/playlist.m3u8" relative to the master playlist.
func BuildMasterPlaylist(v Video, current int) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	if len(v.Bitrates) == 0 {
		return b.String()
	}

	for _, rate := range variantOrder(v, current) {
		b.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,NAME=\"%dk\"\n", bandwidthBPS(rate), rate))
		b.WriteString(fmt.Sprintf("%d/playlist.m3u8\n", rate))
	}

	return b.String()
}

// variantOrder returns the distinct ladder rungs with the selected one first.
func variantOrder(v Video, current int) []int {
	seen := make(map[int]bool, len(v.Bitrates))
	rungs := make([]int, 0, len(v.Bitrates))
	for _, r := range v.Bitrates {
		if !seen[r] {
			seen[r] = true
			rungs = append(rungs, r)
		}
	}
	sort.Ints(rungs)

	selected := v.Nearest(current)
	out := make([]int, 0, len(rungs))
	out = append(out, selected)
	for _, r := range rungs {
		if r != selected {
			out = append(out, r)
		}
	}
	return out
}

// bandwidthBPS converts a ladder rung in kbps to the bits-per-second value
// #EXT-X-STREAM-INF expects.
func bandwidthBPS(kbps int) int {
	return kbps * 1000
}
