package config

import "time"

// Dispatch Constants
const (
	// MaxConcurrentDispatch limits how many variations render at once
	MaxConcurrentDispatch = 3

	// PollInterval is the wait between job status checks on the render server
	PollInterval = 2 * time.Second

	// RenderTimeout bounds how long a single render may be polled
	RenderTimeout = 10 * time.Minute

	// HealthTimeout bounds the render server health check
	HealthTimeout = 10 * time.Second

	// UploadTimeout bounds a source asset upload
	UploadTimeout = 5 * time.Minute

	// CloudRequestTimeout bounds a single cloud provider call
	CloudRequestTimeout = 2 * time.Minute
)

// Tracking Constants
const (
	// ProgressCap is the highest overall percentage reported before every job completes
	ProgressCap = 99

	// LogBufferSize is the number of log lines kept per run
	LogBufferSize = 500

	// ElapsedTickSchedule drives elapsed time updates for running jobs
	ElapsedTickSchedule = "@every 1s"

	// PollFallbackSchedule drives job record polling while the change feed is down
	PollFallbackSchedule = "@every 3s"
)

// Render Server Constants
const (
	// RenderWorkers is the number of encodes the render server runs at once
	RenderWorkers = 2

	// RenderQueueSize is the number of jobs that may wait for a worker
	RenderQueueSize = 64

	// MaxUploadBytes caps a single uploaded source file (2 GiB)
	MaxUploadBytes = 2 << 30

	// DefaultAspectRatio is used when a request names none
	DefaultAspectRatio = "9:16"
)

// Video Output Constants
const (
	// VideoCodec is the video encoding codec
	VideoCodec = "libx264"

	// VideoPreset is the ffmpeg encoding speed preset
	VideoPreset = "fast"

	// FrameRate is the output frame rate
	FrameRate = 30
)

// Directory Constants
const (
	// UploadDir is where the render server stores uploaded sources
	UploadDir = "uploads"

	// OutputDir is where the render server writes finished videos
	OutputDir = "output"
)

// Messaging and Storage Constants
const (
	// DefaultJobStatusTopic carries job status change events
	DefaultJobStatusTopic = "render-job-status"

	// TrackerConsumerGroup is the consumer group of the orchestrator API
	TrackerConsumerGroup = "reelforge-tracker"

	// JobKeyPrefix prefixes job records in Redis
	JobKeyPrefix = "reelforge:job:"

	// RunJobsKeyPrefix prefixes the per-run job id sets in Redis
	RunJobsKeyPrefix = "reelforge:run:"

	// JobRecordTTL is how long finished job records are kept
	JobRecordTTL = 7 * 24 * time.Hour

	// PresignExpiry is the lifetime of presigned video URLs
	PresignExpiry = 24 * time.Hour
)

// YouTube Constants
const (
	// YouTubeCategoryID for People & Blogs
	YouTubeCategoryID = "22"

	// YouTubePrivacyStatus sets video visibility
	YouTubePrivacyStatus = "unlisted"

	// MaxTitleLength is the maximum character length for video titles
	MaxTitleLength = 100
)
