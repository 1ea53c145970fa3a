package publish

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"reelforge/config"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Metadata is what a published video is listed with.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string
}

// YouTube uploads finished renders to a channel through a service account.
type YouTube struct {
	service *youtube.Service
	http    *http.Client
}

// NewYouTube reads the service account file and builds the API client.
func NewYouTube(ctx context.Context, serviceAccountFile string) (*YouTube, error) {
	data, err := os.ReadFile(serviceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}

	jwt, err := google.JWTConfigFromJSON(data, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account: %w", err)
	}

	service, err := youtube.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create YouTube service: %w", err)
	}
	return &YouTube{service: service, http: &http.Client{Timeout: config.UploadTimeout}}, nil
}

// Publish streams the video at videoURL (an http(s) URL or a local path) to
// YouTube and returns the new video id.
func (y *YouTube) Publish(ctx context.Context, videoURL, title, description string) (string, error) {
	media, err := y.open(ctx, videoURL)
	if err != nil {
		return "", err
	}
	defer media.Close()

	meta := BuildMetadata(title, description)
	log.Printf("📤 Publishing %q from %s", meta.Title, videoURL)

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           meta.Privacy,
			SelfDeclaredMadeForKids: false,
		},
	}

	response, err := y.service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(media).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}

	log.Printf("✅ Published! https://youtube.com/shorts/%s", response.Id)
	return response.Id, nil
}

func (y *YouTube) open(ctx context.Context, videoURL string) (io.ReadCloser, error) {
	if !strings.HasPrefix(videoURL, "http://") && !strings.HasPrefix(videoURL, "https://") {
		f, err := os.Open(videoURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open video file: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := y.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download video: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download video: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// BuildMetadata derives listing metadata from a run's brief.
func BuildMetadata(title, description string) Metadata {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled render"
	}
	if r := []rune(title); len(r) > config.MaxTitleLength {
		title = string(r[:config.MaxTitleLength-3]) + "..."
	}

	return Metadata{
		Title:       title,
		Description: strings.TrimSpace(description + "\n\n#shorts"),
		Tags:        []string{"shorts", "video"},
		CategoryID:  config.YouTubeCategoryID,
		Privacy:     config.YouTubePrivacyStatus,
	}
}
