package gateway

import (
	"strings"
	"testing"
)

func TestBuildMasterPlaylist_empty_ladder(t *testing.T) {
	out := BuildMasterPlaylist(Video{ID: "v1"}, 0)
	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Error("expected #EXTM3U header")
	}
	if !strings.Contains(out, "#EXT-X-VERSION:3") {
		t.Error("expected version 3")
	}
	if strings.Contains(out, "#EXT-X-STREAM-INF") {
		t.Errorf("empty ladder should have no variants: %s", out)
	}
}

func TestBuildMasterPlaylist_selected_first(t *testing.T) {
	v := Video{ID: "v1", Bitrates: []int{1080, 360, 720}}
	out := BuildMasterPlaylist(v, 720)

	if strings.Count(out, "#EXT-X-STREAM-INF") != 3 {
		t.Fatalf("expected 3 variants: %s", out)
	}
	first := strings.Index(out, "720/playlist.m3u8")
	low := strings.Index(out, "360/playlist.m3u8")
	high := strings.Index(out, "1080/playlist.m3u8")
	if first < 0 || low < 0 || high < 0 {
		t.Fatalf("missing variant uri: %s", out)
	}
	if !(first < low && low < high) {
		t.Errorf("expected 720 first then ascending: %s", out)
	}
	if !strings.Contains(out, "BANDWIDTH=720000") {
		t.Errorf("expected bandwidth in bps: %s", out)
	}
}

func TestBuildMasterPlaylist_unset_bitrate_uses_lowest(t *testing.T) {
	v := Video{ID: "v1", Bitrates: []int{480, 240}}
	out := BuildMasterPlaylist(v, 0)
	if strings.Index(out, "240/playlist.m3u8") > strings.Index(out, "480/playlist.m3u8") {
		t.Errorf("unset bitrate should start on the lowest rung: %s", out)
	}
}

func TestBuildMasterPlaylist_duplicate_rungs(t *testing.T) {
	v := Video{ID: "v1", Bitrates: []int{720, 720, 360}}
	out := BuildMasterPlaylist(v, 1000)
	if strings.Count(out, "720/playlist.m3u8") != 1 {
		t.Errorf("duplicate rungs should render once: %s", out)
	}
}

func TestVideo_Nearest(t *testing.T) {
	v := Video{ID: "v1", Bitrates: []int{360, 720, 1080}}
	cases := map[int]int{0: 360, 100: 360, 360: 360, 719: 360, 720: 720, 5000: 1080}
	for in, want := range cases {
		if got := v.Nearest(in); got != want {
			t.Errorf("Nearest(%d) = %d, want %d", in, got, want)
		}
	}
}
