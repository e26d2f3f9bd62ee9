// Package scrape accumulates streamed page bytes just long enough to
// cover the document's metadata-bearing region, then extracts
// OpenGraph-style title, description, and image fields from whatever
// was captured.
package scrape

import (
	"bytes"

	"golang.org/x/net/html"
)

// StopReason explains why accumulation finished.
type StopReason string

// Stop reasons surfaced in events and metrics.
const (
	// ReasonMarkerFound means the head-close (or body-open) marker was
	// confirmed, so the rest of the document cannot add metadata.
	ReasonMarkerFound StopReason = "marker_found"
	// ReasonTruncated means the byte cap was reached without a marker;
	// extraction proceeds on the partial buffer.
	ReasonTruncated StopReason = "truncated"
	// ReasonStreamEnded means the server finished the body first.
	ReasonStreamEnded StopReason = "stream_ended"
)

// markerOverlap lets a marker split across two Write calls still match:
// it is one byte short of the longest marker.
const markerOverlap = 6

var markers = [][]byte{[]byte("</head"), []byte("<body")}

// Accumulator consumes a streamed HTML body incrementally and reports
// done as soon as the metadata region is complete or the cap is hit. A
// cheap case-insensitive scan over newly appended bytes nominates
// candidate markers; a tokenizer pass confirms them, so "</head>" inside
// a comment, a script literal, or a "</header>" tag does not stop the
// stream early. The zero cap means unbounded.
type Accumulator struct {
	max     int64
	buf     bytes.Buffer
	done    bool
	reason  StopReason
	scanned int
}

// NewAccumulator builds an Accumulator capped at maxBytes (0 = none).
func NewAccumulator(maxBytes int64) *Accumulator {
	return &Accumulator{max: maxBytes}
}

// Write appends a chunk, reporting the whole chunk as consumed even
// once done so upstream copy loops never observe a short write. Bytes
// past the cap are discarded.
func (a *Accumulator) Write(p []byte) (int, error) {
	if a.done {
		return len(p), nil
	}

	accept := p
	if a.max > 0 {
		remain := a.max - int64(a.buf.Len())
		if remain <= 0 {
			a.stop(ReasonTruncated)
			return len(p), nil
		}
		if int64(len(accept)) > remain {
			accept = accept[:remain]
		}
	}
	a.buf.Write(accept)

	switch {
	case a.scanForMarker():
		a.stop(ReasonMarkerFound)
	case a.max > 0 && int64(a.buf.Len()) >= a.max:
		a.stop(ReasonTruncated)
	}
	return len(p), nil
}

// Done reports whether enough bytes have been seen; upstream readers
// stop as soon as this turns true.
func (a *Accumulator) Done() bool {
	return a.done
}

// Reason reports why accumulation stopped. Before a marker or cap is
// hit it reports ReasonStreamEnded, which is also the final reason when
// the server closes the body first.
func (a *Accumulator) Reason() StopReason {
	if !a.done {
		return ReasonStreamEnded
	}
	return a.reason
}

// Bytes exposes the captured prefix of the document for extraction.
func (a *Accumulator) Bytes() []byte {
	return a.buf.Bytes()
}

// Len returns how many bytes were captured.
func (a *Accumulator) Len() int {
	return a.buf.Len()
}

func (a *Accumulator) stop(reason StopReason) {
	a.done = true
	a.reason = reason
}

// scanForMarker looks for candidate markers in the bytes appended since
// the previous scan (plus a small overlap for markers split across
// chunks) and confirms any hit with a real tokenizer pass.
func (a *Accumulator) scanForMarker() bool {
	data := a.buf.Bytes()
	from := a.scanned - markerOverlap
	if from < 0 {
		from = 0
	}
	window := bytes.ToLower(data[from:])
	a.scanned = len(data)

	candidate := false
	for _, marker := range markers {
		if bytes.Contains(window, marker) {
			candidate = true
			break
		}
	}
	if !candidate {
		return false
	}
	return headClosed(data)
}

// headClosed tokenizes the captured buffer and reports whether a real
// head-close or body-open tag has been seen. The tokenizer treats
// script and comment content as raw text, which is what makes the
// candidate markers safe to trust.
func headClosed(data []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.EndTagToken:
			if name, _ := z.TagName(); bytes.Equal(name, []byte("head")) {
				return true
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			if name, _ := z.TagName(); bytes.Equal(name, []byte("body")) {
				return true
			}
		}
	}
}
