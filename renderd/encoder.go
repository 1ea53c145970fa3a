package renderd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"reelforge/config"
	"reelforge/types"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// EncodeRequest is one scene list to render from a source file.
type EncodeRequest struct {
	SourcePath  string
	OutputPath  string
	AspectRatio string
	Scenes      types.SceneList
}

// StageFunc receives the encoder's current stage.
type StageFunc func(stage string)

// Encoder renders scene lists into video files.
type Encoder interface {
	Version(ctx context.Context) (path, version string, err error)
	Encode(ctx context.Context, req EncodeRequest, stage StageFunc) (logs []string, err error)
}

// FFmpegEncoder renders with the ffmpeg binary. The filter graph is built
// with ffmpeg-go and executed as a context-bound process.
type FFmpegEncoder struct {
	path string
}

// NewFFmpegEncoder uses the ffmpeg binary at path, or "ffmpeg" from PATH.
func NewFFmpegEncoder(path string) *FFmpegEncoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegEncoder{path: path}
}

// Version runs "ffmpeg -version" and returns the resolved binary and the
// reported version.
func (e *FFmpegEncoder) Version(ctx context.Context) (string, string, error) {
	resolved, err := exec.LookPath(e.path)
	if err != nil {
		return "", "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	out, err := exec.CommandContext(ctx, resolved, "-version").Output()
	if err != nil {
		return resolved, "", fmt.Errorf("ffmpeg -version: %w", err)
	}
	return resolved, parseVersion(string(out)), nil
}

// Encode probes the source, builds the scene graph and runs it.
func (e *FFmpegEncoder) Encode(ctx context.Context, req EncodeRequest, stage StageFunc) ([]string, error) {
	if len(req.Scenes) == 0 {
		return nil, fmt.Errorf("no scenes to render")
	}

	stage("analyzing")
	var sourceSec float64
	if probe, err := ffmpeg.Probe(req.SourcePath); err == nil {
		sourceSec = probeDuration(probe)
	}

	stage("assembling")
	args := buildGraph(req, sourceSec).GetArgs()

	stage("rendering")
	cmd := exec.CommandContext(ctx, e.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	logs := tail(stderr.String(), 20)
	if runErr != nil {
		if ctx.Err() != nil {
			return logs, ctx.Err()
		}
		return logs, fmt.Errorf("ffmpeg failed: %w", runErr)
	}
	return logs, nil
}

// buildGraph trims each scene from the source, fits it to the aspect ratio,
// draws its overlay and concatenates the segments.
func buildGraph(req EncodeRequest, sourceSec float64) *ffmpeg.Stream {
	w, h := frameSize(req.AspectRatio)
	in := ffmpeg.Input(req.SourcePath)

	segments := make([]*ffmpeg.Stream, 0, len(req.Scenes))
	for _, sc := range req.Scenes {
		start, end := sourceWindow(sc, sourceSec)
		seg := in.Video().
			Trim(ffmpeg.KwArgs{"start": seconds(start), "end": seconds(end)}).
			Filter("setpts", ffmpeg.Args{"PTS-STARTPTS"}).
			Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", w, h)}, ffmpeg.KwArgs{"force_original_aspect_ratio": "increase"}).
			Filter("crop", ffmpeg.Args{fmt.Sprintf("%d:%d", w, h)}).
			Filter("setsar", ffmpeg.Args{"1"})
		if sc.Overlay != nil && strings.TrimSpace(sc.Overlay.Text) != "" {
			seg = seg.Filter("drawtext", ffmpeg.Args{}, ffmpeg.KwArgs{
				"text":       drawtextSafe(sc.Overlay.Text),
				"fontsize":   h / 18,
				"fontcolor":  "white",
				"box":        1,
				"boxcolor":   "black@0.5",
				"boxborderw": 16,
				"x":          "(w-text_w)/2",
				"y":          overlayY(sc.Overlay.Position),
			})
		}
		segments = append(segments, seg)
	}

	return ffmpeg.Concat(segments, ffmpeg.KwArgs{"v": 1, "a": 0}).
		Output(req.OutputPath, ffmpeg.KwArgs{
			"c:v":      config.VideoCodec,
			"preset":   config.VideoPreset,
			"r":        config.FrameRate,
			"pix_fmt":  "yuv420p",
			"movflags": "+faststart",
		}).
		OverWriteOutput()
}

// sourceWindow maps a scene's timeline slot onto the source, wrapping
// around when the source is shorter than the planned video.
func sourceWindow(sc types.Scene, sourceSec float64) (float64, float64) {
	start := float64(sc.StartMs) / 1000
	dur := float64(sc.DurationMs()) / 1000
	if sourceSec <= 0 {
		return start, start + dur
	}
	if dur >= sourceSec {
		return 0, sourceSec
	}
	for start >= sourceSec {
		start -= sourceSec
	}
	if start+dur > sourceSec {
		start = sourceSec - dur
	}
	return start, start + dur
}

func frameSize(aspect string) (int, int) {
	switch aspect {
	case "1:1":
		return 1080, 1080
	case "16:9":
		return 1920, 1080
	case "4:5":
		return 1080, 1350
	default:
		return 1080, 1920
	}
}

func overlayY(position string) string {
	switch position {
	case "top":
		return "h*0.08"
	case "center":
		return "(h-text_h)/2"
	default:
		return "h*0.85-text_h"
	}
}

// drawtextSafe removes characters drawtext would expand or that break the
// filter quoting.
func drawtextSafe(s string) string {
	return strings.NewReplacer("'", "’", "%", "", "\\", "", "\n", " ").Replace(strings.TrimSpace(s))
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func probeDuration(probeJSON string) float64 {
	var out struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(probeJSON), &out); err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return d
}

func parseVersion(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return strings.TrimSpace(line)
}

func tail(s string, n int) []string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
