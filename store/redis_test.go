package store

import (
	"testing"
)

func TestKeys(t *testing.T) {
	if got := JobKey("abc"); got != "reelforge:job:abc" {
		t.Fatalf("JobKey = %q", got)
	}
	if got := RunKey("run-1"); got != "reelforge:run:run-1" {
		t.Fatalf("RunKey = %q", got)
	}
}

func TestDecodeRecordsSkipsMissingAndCorrupt(t *testing.T) {
	values := []interface{}{
		`{"id":"j1","project_id":"r","status":"processing","stage_name":"encoding","progress":40,"attempt":1}`,
		nil,
		`{broken`,
		`{"id":"j2","project_id":"r","status":"completed","progress":100}`,
	}
	got := decodeRecords(values)
	if len(got) != 2 {
		t.Fatalf("decoded %d records, want 2", len(got))
	}
	if got[0].ID != "j1" || got[0].StageName != "encoding" || got[0].Progress != 40 || got[0].Attempt != 1 {
		t.Fatalf("first record = %+v", got[0])
	}
	if got[1].ID != "j2" || got[1].Status != "completed" {
		t.Fatalf("second record = %+v", got[1])
	}
}
