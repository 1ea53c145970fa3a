package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

type statusMsg struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func TestTypedMessageHandler(t *testing.T) {
	var got []string
	h := &TypedMessageHandler[statusMsg]{
		Validate: func(m *statusMsg) bool { return m.ID != "" },
		Process: func(ctx context.Context, m *statusMsg) error {
			if m.Status == "boom" {
				return errors.New("process failed")
			}
			got = append(got, m.ID)
			return nil
		},
		AlwaysMark: true,
	}

	cases := []struct {
		name     string
		payload  string
		wantMark bool
		wantErr  bool
	}{
		{"valid", `{"id":"j1","status":"rendering"}`, true, false},
		{"invalid json", `{not json`, true, false},
		{"fails validation", `{"status":"rendering"}`, true, false},
		{"process error", `{"id":"j2","status":"boom"}`, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mark, err := h.HandleMessage(context.Background(), []byte(tc.payload))
			if mark != tc.wantMark || (err != nil) != tc.wantErr {
				t.Fatalf("mark=%v err=%v", mark, err)
			}
		})
	}
	if len(got) != 1 || got[0] != "j1" {
		t.Fatalf("processed %v", got)
	}
}

func TestHandlerTracksSession(t *testing.T) {
	c := &Consumer{}
	h := &consumerGroupHandler{connected: &c.connected}

	if c.Connected() {
		t.Fatal("connected before setup")
	}
	h.Setup(nil)
	if !c.Connected() {
		t.Fatal("not connected after setup")
	}
	h.Cleanup(nil)
	if c.Connected() {
		t.Fatal("still connected after cleanup")
	}
}

func TestProducerPublishesJSON(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	mock := mocks.NewSyncProducer(t, cfg)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var m statusMsg
		if err := json.Unmarshal(val, &m); err != nil {
			return err
		}
		if m.ID != "job-1" || m.Status != "completed" {
			return fmt.Errorf("unexpected message %+v", m)
		}
		return nil
	})
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := &Producer{producer: mock, topic: "status"}
	if err := p.PublishJSON("job-1", statusMsg{ID: "job-1", Status: "completed"}); err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
	if err := p.PublishJSON("job-2", statusMsg{ID: "job-2"}); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
