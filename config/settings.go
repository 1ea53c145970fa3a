package config

import (
	"os"
	"strings"
)

// Settings holds the environment driven configuration shared by the binaries.
type Settings struct {
	Port            string
	RenderServerURL string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	RedisAddr     string
	RedisPassword string

	S3Bucket       string
	S3Region       string
	S3Profile      string
	S3Prefix       string
	S3UsePathStyle bool

	EngineCatalogPath string
	FFmpegPath        string

	CohereAPIKey string
	CohereModel  string

	RunwayAPIKey     string
	RunwayBaseURL    string
	HeyGenAPIKey     string
	HeyGenBaseURL    string
	ShotstackAPIKey  string
	ShotstackBaseURL string

	YouTubeCredentialsFile string
}

// Load reads Settings from the environment. Call godotenv.Load first to pick
// up a .env file.
//
// RENDER_SERVER_URL defaults to http://localhost:8090; set it to "disabled"
// for a cloud-only deployment with no local render server.
func Load() Settings {
	s := Settings{
		Port:              GetEnvOrDefault("PORT", "8080"),
		RenderServerURL:   renderServerURL(),
		KafkaTopic:        GetEnvOrDefault("KAFKA_TOPIC_JOB_STATUS", DefaultJobStatusTopic),
		KafkaGroupID:      GetEnvOrDefault("KAFKA_GROUP_ID", TrackerConsumerGroup),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		S3Bucket:          strings.TrimSpace(os.Getenv("S3_BUCKET")),
		S3Region:          strings.TrimSpace(os.Getenv("S3_REGION")),
		S3Profile:         strings.TrimSpace(os.Getenv("S3_PROFILE")),
		S3UsePathStyle:    strings.EqualFold(strings.TrimSpace(os.Getenv("S3_USE_PATH_STYLE")), "true"),
		EngineCatalogPath: os.Getenv("ENGINE_CATALOG"),
		FFmpegPath:        GetEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		CohereAPIKey:      os.Getenv("COHERE_API_KEY"),
		CohereModel:       os.Getenv("COHERE_MODEL"),
		RunwayAPIKey:      os.Getenv("RUNWAY_API_KEY"),
		RunwayBaseURL:     GetEnvOrDefault("RUNWAY_BASE_URL", "https://api.dev.runwayml.com"),
		HeyGenAPIKey:      os.Getenv("HEYGEN_API_KEY"),
		HeyGenBaseURL:     GetEnvOrDefault("HEYGEN_BASE_URL", "https://api.heygen.com"),
		ShotstackAPIKey:   os.Getenv("SHOTSTACK_API_KEY"),
		ShotstackBaseURL:  GetEnvOrDefault("SHOTSTACK_BASE_URL", "https://api.shotstack.io"),

		YouTubeCredentialsFile: os.Getenv("YOUTUBE_CREDENTIALS_FILE"),
	}

	if brokers := os.Getenv("KAFKA_BOOTSTRAP_SERVERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				s.KafkaBrokers = append(s.KafkaBrokers, b)
			}
		}
	}

	if prefix := strings.TrimSpace(os.Getenv("S3_PREFIX")); prefix != "" {
		s.S3Prefix = strings.Trim(prefix, "/") + "/"
	}
	return s
}

// RenderServerDisabled is the RENDER_SERVER_URL value that turns the local
// render server off.
const RenderServerDisabled = "disabled"

func renderServerURL() string {
	v := strings.TrimSpace(GetEnvOrDefault("RENDER_SERVER_URL", "http://localhost:8090"))
	if strings.EqualFold(v, RenderServerDisabled) {
		return ""
	}
	return strings.TrimRight(v, "/")
}

// GetEnvOrDefault returns the value of an environment variable or a default value
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
