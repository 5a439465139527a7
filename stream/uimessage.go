package stream

import (
	"io"
	"net/http"

	"github.com/ZaguanLabs/tlstream"
	"github.com/gin-contrib/sse"
	"github.com/google/uuid"
)

// UIMessageWriter writes the AI SDK UI message stream over server-sent
// events, terminated by a [DONE] sentinel.
type UIMessageWriter struct {
	w         io.Writer
	header    http.Header
	flusher   http.Flusher
	messageID string
	textID    string
	started   bool
	textOpen  bool
	done      bool
}

// NewUIMessageWriter creates a UI message stream writer on w.
func NewUIMessageWriter(w http.ResponseWriter) *UIMessageWriter {
	flusher, _ := w.(http.Flusher)
	return &UIMessageWriter{
		w:         w,
		header:    w.Header(),
		flusher:   flusher,
		messageID: "msg-" + uuid.NewString(),
		textID:    uuid.NewString(),
	}
}

func (u *UIMessageWriter) event(data interface{}) error {
	if err := sse.Encode(u.w, sse.Event{Data: data}); err != nil {
		return err
	}
	if u.flusher != nil {
		u.flusher.Flush()
	}
	return nil
}

func (u *UIMessageWriter) start() error {
	if u.started {
		return nil
	}
	u.started = true

	u.header.Set("Content-Type", sse.ContentType)
	u.header.Set("x-vercel-ai-ui-message-stream", "v1")
	u.header.Set("Cache-Control", "no-cache")
	u.header.Set("Connection", "keep-alive")
	u.header.Set("X-Accel-Buffering", "no")

	return u.event(map[string]string{"type": "start", "messageId": u.messageID})
}

// WriteDelta writes a text-delta event, opening the text part if needed.
func (u *UIMessageWriter) WriteDelta(delta tlstream.TextDelta) error {
	if err := u.start(); err != nil {
		return err
	}
	if !u.textOpen {
		u.textOpen = true
		if err := u.event(map[string]string{"type": "text-start", "id": u.textID}); err != nil {
			return err
		}
	}
	return u.event(map[string]string{"type": "text-delta", "id": u.textID, "delta": delta.Text})
}

// WriteError writes an error event and terminates the stream.
func (u *UIMessageWriter) WriteError(message string) error {
	if err := u.start(); err != nil {
		return err
	}
	if err := u.event(map[string]string{"type": "error", "errorText": message}); err != nil {
		return err
	}
	return u.terminate()
}

// Finish closes the text part, writes the finish event and terminates the
// stream.
func (u *UIMessageWriter) Finish(info tlstream.FinishInfo) error {
	if err := u.start(); err != nil {
		return err
	}
	if u.textOpen {
		u.textOpen = false
		if err := u.event(map[string]string{"type": "text-end", "id": u.textID}); err != nil {
			return err
		}
	}

	reason := info.Reason
	if reason == "" {
		reason = tlstream.FinishReasonStop
	}
	if err := u.event(map[string]interface{}{
		"type":            "finish",
		"finishReason":    reason,
		"messageMetadata": map[string]interface{}{"cached": info.Cached, "usage": info.Usage},
	}); err != nil {
		return err
	}
	return u.terminate()
}

func (u *UIMessageWriter) terminate() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.event("[DONE]")
}

var _ tlstream.StreamWriter = (*UIMessageWriter)(nil)
