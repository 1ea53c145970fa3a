package common

import (
	"context"
	"testing"
)

func TestKeyUsesPrefixAndBaseName(t *testing.T) {
	s := &S3{bucket: "videos", prefix: "renders/"}
	cases := map[string]string{
		"output/batch_v01_ffmpeg.mp4": "renders/batch_v01_ffmpeg.mp4",
		"clip.mp4":                    "renders/clip.mp4",
	}
	for in, want := range cases {
		if got := s.Key(in); got != want {
			t.Errorf("Key(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewS3RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
