package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "")
	t.Setenv("RENDER_SERVER_URL", "")

	s := Load()
	if s.Port != "8080" {
		t.Fatalf("Port = %q", s.Port)
	}
	if s.RenderServerURL != "http://localhost:8090" {
		t.Fatalf("RenderServerURL = %q", s.RenderServerURL)
	}
	if s.KafkaBrokers != nil {
		t.Fatalf("KafkaBrokers = %v", s.KafkaBrokers)
	}
	if s.KafkaTopic != DefaultJobStatusTopic {
		t.Fatalf("KafkaTopic = %q", s.KafkaTopic)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RENDER_SERVER_URL", "http://vps:9000/")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "k1:9092, k2:9092,")
	t.Setenv("S3_PREFIX", "/renders/")
	t.Setenv("S3_USE_PATH_STYLE", "TRUE")

	s := Load()
	if s.RenderServerURL != "http://vps:9000" {
		t.Fatalf("RenderServerURL = %q", s.RenderServerURL)
	}
	if len(s.KafkaBrokers) != 2 || s.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("KafkaBrokers = %v", s.KafkaBrokers)
	}
	if s.S3Prefix != "renders/" || !s.S3UsePathStyle {
		t.Fatalf("S3 settings = %q, %v", s.S3Prefix, s.S3UsePathStyle)
	}
}

func TestLoadRenderServerDisabled(t *testing.T) {
	for _, v := range []string{"disabled", "DISABLED", " disabled "} {
		t.Setenv("RENDER_SERVER_URL", v)
		if got := Load().RenderServerURL; got != "" {
			t.Fatalf("RENDER_SERVER_URL=%q gave %q, want local server off", v, got)
		}
	}
}
