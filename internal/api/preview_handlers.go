package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/irclight/unfurl/internal/preview"
	"github.com/irclight/unfurl/internal/scheduler"
)

type previewRequest struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

type outcomeDTO struct {
	RequestID  string       `json:"request_id"`
	URL        string       `json:"url"`
	Result     string       `json:"result"`
	Metadata   *metadataDTO `json:"metadata,omitempty"`
	Image      *imageDTO    `json:"image,omitempty"`
	Error      string       `json:"error,omitempty"`
	Bytes      int64        `json:"bytes"`
	DurationMs int64        `json:"duration_ms"`
}

type metadataDTO struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// imageDTO reports the captured payload without inlining its bytes.
type imageDTO struct {
	ContentType string `json:"content_type"`
	Digest      string `json:"digest"`
	Size        int    `json:"size"`
}

type requestDTO struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Kind       string    `json:"kind"`
	State      string    `json:"state"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// submitPreview handles POST /v1/previews. The handler blocks until the
// preview resolves, so operators can exercise the full pipeline with a
// single request.
func (s *Server) submitPreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tk, err := s.scheduler.Submit(req.URL, kind)
	if err != nil {
		if errors.Is(err, scheduler.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := tk.Wait(r.Context())
	if err != nil {
		// The client went away or the route timeout fired; the request
		// keeps resolving in the background.
		writeError(w, http.StatusGatewayTimeout, "preview did not resolve in time")
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeDTO(tk.ID(), out))
}

// listRequests handles GET /v1/requests with the in-flight snapshot.
func (s *Server) listRequests(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": toRequestDTOs(s.scheduler.Snapshot()),
	})
}

// cancelRequest handles DELETE /v1/requests/{request_id}. Cancellation
// is asynchronous: the request still resolves with a single outcome.
func (s *Server) cancelRequest(w http.ResponseWriter, r *http.Request) {
	id, err := parseRequestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.scheduler.Cancel(id) {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"request_id": id.String(),
		"status":     "cancelling",
	})
}

func parseKind(input string) (preview.Kind, error) {
	switch preview.Kind(strings.ToLower(strings.TrimSpace(input))) {
	case preview.KindRequested:
		return preview.KindRequested, nil
	case preview.KindUnknown, "":
		return preview.KindUnknown, nil
	default:
		return "", errors.New("invalid kind")
	}
}

func parseRequestID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "request_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("request_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid request_id")
	}
	return id, nil
}

func toOutcomeDTO(id uuid.UUID, out preview.Outcome) outcomeDTO {
	dto := outcomeDTO{
		RequestID:  id.String(),
		URL:        out.URL,
		Result:     out.Result(),
		Bytes:      out.Bytes,
		DurationMs: out.Duration.Milliseconds(),
	}
	switch {
	case out.Err != nil:
		dto.Error = out.Err.Error()
	case out.Image != nil:
		dto.Image = &imageDTO{
			ContentType: out.Image.ContentType,
			Digest:      out.Image.Digest,
			Size:        len(out.Image.Bytes),
		}
	case out.Metadata != nil:
		dto.Metadata = &metadataDTO{
			Title:       out.Metadata.Title,
			Description: out.Metadata.Description,
			ImageURL:    out.Metadata.ImageURL,
		}
	}
	return dto
}

func toRequestDTOs(tickets []*scheduler.Ticket) []requestDTO {
	out := make([]requestDTO, 0, len(tickets))
	for _, tk := range tickets {
		req := tk.Request()
		out = append(out, requestDTO{
			ID:         tk.ID().String(),
			URL:        req.URL,
			Kind:       string(req.Kind),
			State:      tk.State().String(),
			EnqueuedAt: tk.EnqueuedAt(),
		})
	}
	return out
}
