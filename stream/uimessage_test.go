package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ZaguanLabs/tlstream"
)

// parseEvents splits an SSE body into the data payload of each event.
func parseEvents(t *testing.T, body string) []string {
	t.Helper()
	var out []string
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if !strings.HasPrefix(block, "data:") {
			t.Fatalf("unexpected event block %q", block)
		}
		out = append(out, strings.TrimSpace(strings.TrimPrefix(block, "data:")))
	}
	return out
}

func decodeEvent(t *testing.T, data string) map[string]interface{} {
	t.Helper()
	var v map[string]interface{}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		t.Fatalf("event %q is not JSON: %v", data, err)
	}
	return v
}

func TestUIMessageWriter_Success(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewUIMessageWriter(rec)

	_ = w.WriteDelta(tlstream.TextDelta{Text: "Bonjour "})
	_ = w.WriteDelta(tlstream.TextDelta{Text: "le monde"})
	if err := w.Finish(tlstream.FinishInfo{Reason: "stop", Cached: true}); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	events := parseEvents(t, rec.Body.String())
	if len(events) != 7 {
		t.Fatalf("expected 7 events, got %d: %q", len(events), events)
	}

	wantTypes := []string{"start", "text-start", "text-delta", "text-delta", "text-end", "finish"}
	var textID string
	for i, want := range wantTypes {
		ev := decodeEvent(t, events[i])
		if ev["type"] != want {
			t.Errorf("event %d type = %v, want %s", i, ev["type"], want)
		}
		if id, ok := ev["id"].(string); ok {
			if textID == "" {
				textID = id
			} else if id != textID {
				t.Errorf("event %d id = %s, want %s", i, id, textID)
			}
		}
	}

	if delta := decodeEvent(t, events[3])["delta"]; delta != "le monde" {
		t.Errorf("second delta = %v", delta)
	}
	finish := decodeEvent(t, events[5])
	if finish["finishReason"] != "stop" {
		t.Errorf("finishReason = %v", finish["finishReason"])
	}
	if meta, _ := finish["messageMetadata"].(map[string]interface{}); meta["cached"] != true {
		t.Errorf("finish metadata should report the cache hit, got %v", finish["messageMetadata"])
	}
	if events[6] != "[DONE]" {
		t.Errorf("last event = %q, want [DONE]", events[6])
	}

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	if v := rec.Header().Get("x-vercel-ai-ui-message-stream"); v != "v1" {
		t.Errorf("x-vercel-ai-ui-message-stream = %q", v)
	}
}

func TestUIMessageWriter_Error(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewUIMessageWriter(rec)

	if err := w.WriteError("The translation request timed out."); err != nil {
		t.Fatalf("WriteError failed: %v", err)
	}

	events := parseEvents(t, rec.Body.String())
	if len(events) != 3 {
		t.Fatalf("expected start, error and [DONE], got %q", events)
	}
	ev := decodeEvent(t, events[1])
	if ev["type"] != "error" || ev["errorText"] != "The translation request timed out." {
		t.Errorf("unexpected error event %v", ev)
	}
	if events[2] != "[DONE]" {
		t.Errorf("last event = %q", events[2])
	}
}

func TestUIMessageWriter_FinishWithoutText(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewUIMessageWriter(rec)

	_ = w.Finish(tlstream.FinishInfo{})

	events := parseEvents(t, rec.Body.String())
	if len(events) != 3 {
		t.Fatalf("expected start, finish and [DONE], got %q", events)
	}
	if decodeEvent(t, events[1])["type"] != "finish" {
		t.Errorf("unexpected event %q", events[1])
	}
}
