package preview

import (
	"errors"
	"time"
)

// Kind records how a preview request originated.
type Kind string

// Request kinds observed by the chat engine.
const (
	// KindRequested marks a preview the user explicitly asked for.
	KindRequested Kind = "requested"
	// KindUnknown marks a URL noticed in passing, with no explicit ask.
	KindUnknown Kind = "unknown"
)

// Request is a single "preview wanted" submission. It is immutable once
// created and discarded as soon as its Outcome is delivered.
type Request struct {
	URL  string `json:"url"`
	Kind Kind   `json:"kind"`
}

// State is the lifecycle position of an in-flight request.
type State int32

// Request states, in dispatch order. Scraping and ImageCapture are the
// two branches taken after response classification.
const (
	StateQueued State = iota
	StateAdmitted
	StateFetching
	StateScraping
	StateImageCapture
	StateCompleted
)

// String returns the label used in logs, events, and API payloads.
func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateAdmitted:
		return "admitted"
	case StateFetching:
		return "fetching"
	case StateScraping:
		return "scraping"
	case StateImageCapture:
		return "image_capture"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// FetchConfig is the process-wide tuning snapshot for the subsystem.
// It is constructed once at startup and passed explicitly into
// constructors; zero Timeout, MaxImageBytes, or MaxScrapeBytes means
// no limit for that dimension, and zero Concurrency disables admission
// control entirely.
type FetchConfig struct {
	UserAgent      string
	Timeout        time.Duration
	MaxImageBytes  int64
	MaxScrapeBytes int64
	Concurrency    int
	Delay          time.Duration
}

// DefaultFetchConfig returns the stock tuning used when no configuration
// file overrides it.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		UserAgent:      "WhatsApp/2",
		Timeout:        10 * time.Second,
		MaxImageBytes:  10485760,
		MaxScrapeBytes: 512000,
		Concurrency:    4,
		Delay:          500 * time.Millisecond,
	}
}

// Validate rejects configurations the scheduler cannot honor.
func (c FetchConfig) Validate() error {
	if c.Timeout < 0 {
		return errors.New("timeout must be >= 0")
	}
	if c.MaxImageBytes < 0 {
		return errors.New("max image bytes must be >= 0")
	}
	if c.MaxScrapeBytes < 0 {
		return errors.New("max scrape bytes must be >= 0")
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must be >= 0")
	}
	if c.Delay < 0 {
		return errors.New("delay must be >= 0")
	}
	return nil
}

// Image is the opaque payload returned for image-classified responses.
// Bytes is never larger than the configured image cap. Digest is the hex
// SHA-256 of Bytes so downstream consumers can key caches without
// re-reading the payload.
type Image struct {
	Bytes       []byte `json:"-"`
	ContentType string `json:"content_type"`
	Digest      string `json:"digest"`
}

// Metadata holds the OpenGraph-style fields scraped from a page. All
// fields are optional; a fully empty Metadata is still a successful
// outcome, preserving the distinction between "could not fetch" and
// "fetched but nothing useful found".
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Empty reports whether no field was extracted.
func (m Metadata) Empty() bool {
	return m.Title == "" && m.Description == "" && m.ImageURL == ""
}

// Outcome is the single terminal result produced for a request. Exactly
// one of Image, Metadata, or Err is set.
type Outcome struct {
	URL      string        `json:"url"`
	Image    *Image        `json:"image,omitempty"`
	Metadata *Metadata     `json:"metadata,omitempty"`
	Err      error         `json:"-"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

// ImageOutcome builds a successful image-branch outcome.
func ImageOutcome(url string, img Image, bytes int64, dur time.Duration) Outcome {
	return Outcome{URL: url, Image: &img, Bytes: bytes, Duration: dur}
}

// MetadataOutcome builds a successful scrape-branch outcome.
func MetadataOutcome(url string, md Metadata, bytes int64, dur time.Duration) Outcome {
	return Outcome{URL: url, Metadata: &md, Bytes: bytes, Duration: dur}
}

// ErrorOutcome builds a terminal failure outcome.
func ErrorOutcome(url string, err error, bytes int64, dur time.Duration) Outcome {
	return Outcome{URL: url, Err: err, Bytes: bytes, Duration: dur}
}

// IsError reports whether the outcome is a terminal failure.
func (o Outcome) IsError() bool {
	return o.Err != nil
}

// Result returns the label used for logs and metrics: "image",
// "metadata", or the error class.
func (o Outcome) Result() string {
	switch {
	case o.Err != nil:
		return string(ClassifyError(o.Err))
	case o.Image != nil:
		return "image"
	default:
		return "metadata"
	}
}
