package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the lifecycle milestone represented by an Event.
type Stage string

// Supported request lifecycle stages, in dispatch order.
const (
	StageRequestQueued   Stage = "REQUEST_QUEUED"
	StageRequestAdmitted Stage = "REQUEST_ADMITTED"
	StageFetchStart      Stage = "FETCH_START"
	StageFetchDone       Stage = "FETCH_DONE"
	StageRequestDone     Stage = "REQUEST_DONE"
)

// Event captures a single milestone in a preview request's life. Label
// fields (Kind, Branch, Result) are plain strings so the package stays
// decoupled from the scheduler; emitters fill them from their own types.
type Event struct {
	// RequestID uniquely identifies the request using the 16-byte UUID form.
	RequestID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Kind records how the preview was requested (requested/unknown).
	Kind string
	// URL is the normalized request URL; it should not contain credentials.
	URL string
	// Host scopes fetch events to a sanitized hostname label.
	Host string
	// Branch is the capture branch chosen after classification (image/page).
	Branch string
	// Result labels terminal events: metadata, image, or an error class.
	Result string
	// Bytes carries the response size consumed from the transport.
	Bytes int64
	// Dur captures latency: admission wait, fetch time, or total lifetime
	// depending on the stage.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RequestID == [16]byte{} {
		return errors.New("request id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRequestQueued, StageRequestAdmitted, StageFetchStart:
	case StageFetchDone:
		if e.Host == "" {
			return errors.New("fetch done requires host")
		}
		if e.Result == "" {
			return errors.New("fetch done requires result")
		}
	case StageRequestDone:
		if e.Result == "" {
			return errors.New("request done requires result")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RequestUUID converts the binary request ID to uuid.UUID for display.
func (e Event) RequestUUID() uuid.UUID {
	return uuid.UUID(e.RequestID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
