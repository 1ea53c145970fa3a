package renderd

import (
	"strings"
	"testing"

	"reelforge/types"
)

func TestSourceWindow(t *testing.T) {
	cases := []struct {
		name             string
		startMs, endMs   int64
		sourceSec        float64
		wantStart, wantE float64
	}{
		{"unknown source", 3000, 6000, 0, 3, 6},
		{"inside source", 1000, 4000, 10, 1, 4},
		{"wraps around", 12000, 14000, 10, 2, 4},
		{"clamped to end", 9000, 12000, 10, 7, 10},
		{"longer than source", 0, 15000, 10, 0, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := types.Scene{StartMs: tc.startMs, EndMs: tc.endMs}
			start, end := sourceWindow(sc, tc.sourceSec)
			if start != tc.wantStart || end != tc.wantE {
				t.Fatalf("window = [%v, %v], want [%v, %v]", start, end, tc.wantStart, tc.wantE)
			}
		})
	}
}

func TestBuildGraphArgs(t *testing.T) {
	req := EncodeRequest{
		SourcePath:  "uploads/source.mp4",
		OutputPath:  "output/out.mp4",
		AspectRatio: "1:1",
		Scenes: types.SceneList{
			{Index: 0, Type: types.SceneHook, StartMs: 0, EndMs: 2000, Overlay: &types.Overlay{Text: "Stop scrolling", Position: "top"}},
			{Index: 1, Type: types.SceneCTA, StartMs: 2000, EndMs: 5000},
		},
	}
	args := buildGraph(req, 30).GetArgs()
	joined := strings.Join(args, " ")

	for _, want := range []string{"uploads/source.mp4", "trim", "concat", "drawtext", "1080:1080", "Stop"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if !strings.Contains(joined, "-y") {
		t.Errorf("output is not overwritten: %s", joined)
	}
	if !strings.Contains(joined, "output/out.mp4") {
		t.Errorf("output path missing: %s", joined)
	}
	if strings.Count(joined, "drawtext") != 1 {
		t.Errorf("expected one overlay: %s", joined)
	}
}

func TestProbeDuration(t *testing.T) {
	if d := probeDuration(`{"format":{"duration":"12.480000"}}`); d != 12.48 {
		t.Fatalf("duration = %v", d)
	}
	if d := probeDuration(`not json`); d != 0 {
		t.Fatalf("duration = %v", d)
	}
}

func TestParseVersion(t *testing.T) {
	out := "ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023 the FFmpeg developers\nbuilt with gcc 13\n"
	if v := parseVersion(out); v != "6.1.1-3ubuntu5" {
		t.Fatalf("version = %q", v)
	}
}

func TestDrawtextSafe(t *testing.T) {
	if got := drawtextSafe(" It's 100%\nreal "); got != "It’s 100 real" {
		t.Fatalf("got %q", got)
	}
}
