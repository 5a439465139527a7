// Package stream frames translation output for HTTP clients.
//
// Two wire formats are supported: the AI SDK data stream (line-oriented
// "type:json" parts) and the AI SDK UI message stream (server-sent events).
// Both flush after every part so the client renders text as it arrives.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ZaguanLabs/tlstream"
	"github.com/google/uuid"
)

// Protocol names a wire format.
type Protocol string

const (
	ProtocolData Protocol = "data"
	ProtocolUI   Protocol = "ui"
)

// NewWriter returns the StreamWriter for protocol p. Unknown protocols fall
// back to the data stream.
func NewWriter(p Protocol, w http.ResponseWriter) tlstream.StreamWriter {
	if p == ProtocolUI {
		return NewUIMessageWriter(w)
	}
	return NewDataStreamWriter(w)
}

// DataStreamWriter writes the AI SDK data stream protocol: one
// "<code>:<json>\n" part per line.
type DataStreamWriter struct {
	w         io.Writer
	header    http.Header
	flusher   http.Flusher
	messageID string
	started   bool
}

type finishPart struct {
	FinishReason string         `json:"finishReason"`
	Usage        tlstream.Usage `json:"usage"`
	IsContinued  *bool          `json:"isContinued,omitempty"`
}

// NewDataStreamWriter creates a data stream writer on w. Headers are sent
// with the first part.
func NewDataStreamWriter(w http.ResponseWriter) *DataStreamWriter {
	flusher, _ := w.(http.Flusher)
	return &DataStreamWriter{
		w:         w,
		header:    w.Header(),
		flusher:   flusher,
		messageID: "msg-" + uuid.NewString(),
	}
}

func (d *DataStreamWriter) start() error {
	if d.started {
		return nil
	}
	d.started = true

	d.header.Set("Content-Type", "text/plain; charset=utf-8")
	d.header.Set("X-Vercel-AI-Data-Stream", "v1")
	d.header.Set("Cache-Control", "no-cache")
	d.header.Set("X-Accel-Buffering", "no")

	return d.part('f', map[string]string{"messageId": d.messageID})
}

func (d *DataStreamWriter) part(code byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding stream part: %w", err)
	}
	if _, err := fmt.Fprintf(d.w, "%c:%s\n", code, data); err != nil {
		return err
	}
	if d.flusher != nil {
		d.flusher.Flush()
	}
	return nil
}

// WriteDelta writes a text part.
func (d *DataStreamWriter) WriteDelta(delta tlstream.TextDelta) error {
	if err := d.start(); err != nil {
		return err
	}
	return d.part('0', delta.Text)
}

// WriteError writes an error part. message must already be sanitized.
func (d *DataStreamWriter) WriteError(message string) error {
	if err := d.start(); err != nil {
		return err
	}
	return d.part('3', message)
}

// Finish writes the finish-step and finish-message parts.
func (d *DataStreamWriter) Finish(info tlstream.FinishInfo) error {
	if err := d.start(); err != nil {
		return err
	}

	reason := info.Reason
	if reason == "" {
		reason = tlstream.FinishReasonStop
	}

	continued := false
	if err := d.part('e', finishPart{FinishReason: reason, Usage: info.Usage, IsContinued: &continued}); err != nil {
		return err
	}
	return d.part('d', finishPart{FinishReason: reason, Usage: info.Usage})
}

// MessageID returns the id announced in the start part.
func (d *DataStreamWriter) MessageID() string {
	return d.messageID
}

var _ tlstream.StreamWriter = (*DataStreamWriter)(nil)
