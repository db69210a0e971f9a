// Package webhook implements the §6 webhook intake and approval
// surface: external publishers deposit messages onto the shared
// Message Correlation Bus by (messageRef, correlationKey), and human
// approvers complete a receive-node via a plain HTTP hyperlink embedded
// in an email (see executors/send.go's approval-link templating).
package webhook

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowproc/bpmnengine/bus"
)

// Server routes the webhook intake, approval, and queue-introspection
// endpoints against a shared process-wide Bus. Grounded on the same
// stdlib-net/http + ServeMux structuring idiom as transport/http.Server
// (itself grounded on the teacher's pkg/api.HealthServer).
type Server struct {
	mux    *http.ServeMux
	bus    *bus.Bus
	logger zerolog.Logger
}

// NewServer wires every route in §6's webhook surface.
func NewServer(b *bus.Bus, logger zerolog.Logger) *Server {
	s := &Server{mux: http.NewServeMux(), bus: b, logger: logger}

	s.mux.HandleFunc("/webhooks/message", s.handleMessage)
	s.mux.HandleFunc("/webhooks/queue/stats", s.handleQueueStats)
	s.mux.HandleFunc("/webhooks/queue/", s.handleQueueByKey)
	s.mux.HandleFunc("/webhook/approval/", s.handleDirectApproval)
	s.mux.HandleFunc("/webhooks/approve/", s.handleApprovalDecision("approved"))
	s.mux.HandleFunc("/webhooks/deny/", s.handleApprovalDecision("rejected"))
	s.mux.HandleFunc("/webhooks/", s.handleKeyedPublish)

	return s
}

// Handler returns the webhook surface's http.Handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe starts the webhook HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv.ListenAndServe()
}

type messageRequest struct {
	MessageRef     string         `json:"messageRef"`
	CorrelationKey string         `json:"correlationKey"`
	Payload        map[string]any `json:"payload"`
}

// handleMessage implements POST /webhooks/message.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.MessageRef == "" || req.CorrelationKey == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("messageRef and correlationKey are required"))
		return
	}

	delivered := s.bus.Publish(req.MessageRef, req.CorrelationKey, req.Payload)
	writeJSON(w, http.StatusOK, map[string]any{"delivered": delivered})
}

// handleKeyedPublish implements POST /webhooks/{messageRef}/{correlationKey}:
// the same publish as handleMessage, but with the key pair in the path
// and an URL-encoded form body as the payload.
func (s *Server) handleKeyedPublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	messageRef, correlationKey, ok := splitTwoSegments(r.URL.Path, "/webhooks/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}
	payload := make(map[string]any, len(r.Form))
	for k := range r.Form {
		payload[k] = r.Form.Get(k)
	}

	delivered := s.bus.Publish(messageRef, correlationKey, payload)
	writeJSON(w, http.StatusOK, map[string]any{"delivered": delivered})
}

// handleApprovalDecision builds the GET (confirmation page) / POST
// (publish decision) handler pair shared by /webhooks/approve/... and
// /webhooks/deny/....
func (s *Server) handleApprovalDecision(decision string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefix := "/webhooks/approve/"
		if decision == "rejected" {
			prefix = "/webhooks/deny/"
		}
		messageRef, correlationKey, ok := splitTwoSegments(r.URL.Path, prefix)
		if !ok {
			http.NotFound(w, r)
			return
		}

		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_ = confirmationPage.Execute(w, confirmationPageData{
				Decision:       decision,
				MessageRef:     messageRef,
				CorrelationKey: correlationKey,
				PostURL:        r.URL.Path,
			})

		case http.MethodPost:
			s.bus.Publish(messageRef, correlationKey, map[string]any{
				"decision":  decision,
				"method":    "email",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_ = thankYouPage.Execute(w, confirmationPageData{Decision: decision})

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleDirectApproval implements
// GET /webhook/approval/{workflowInstanceId}?decision={approved|rejected}:
// a direct deposit into the per-instance queue under the fixed
// messageRef "diagnosticApproval".
func (s *Server) handleDirectApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	instanceID := strings.TrimPrefix(r.URL.Path, "/webhook/approval/")
	if instanceID == "" || instanceID == r.URL.Path {
		http.NotFound(w, r)
		return
	}

	decision := r.URL.Query().Get("decision")
	if decision != "approved" && decision != "rejected" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decision must be \"approved\" or \"rejected\""))
		return
	}

	s.bus.Publish("diagnosticApproval", instanceID, map[string]any{
		"decision":  decision,
		"method":    "link",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "recorded", "decision": decision})
}

// handleQueueStats implements GET /webhooks/queue/stats.
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.bus.Snapshot())
}

// handleQueueByKey implements GET and DELETE /webhooks/queue/{correlationKey}.
func (s *Server) handleQueueByKey(w http.ResponseWriter, r *http.Request) {
	correlationKey := strings.TrimPrefix(r.URL.Path, "/webhooks/queue/")
	if correlationKey == "" || correlationKey == r.URL.Path {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		var queued []bus.QueuedMessage
		for _, m := range s.bus.ListQueuedMessages() {
			if m.CorrelationKey == correlationKey {
				queued = append(queued, m)
			}
		}
		var waiting []bus.WaitingTask
		for _, t := range s.bus.ListWaiters() {
			if t.CorrelationKey == correlationKey {
				waiting = append(waiting, t)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"queued": queued, "waiting": waiting})

	case http.MethodDelete:
		removed := s.bus.ClearMessages(correlationKey)
		writeJSON(w, http.StatusOK, map[string]any{"removed": removed})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// splitTwoSegments splits the remainder of path after prefix into
// exactly two "/"-separated, non-empty, URL-decoded segments.
func splitTwoSegments(path, prefix string) (first, second string, ok bool) {
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path {
		return "", "", false
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	a, errA := url.PathUnescape(parts[0])
	b, errB := url.PathUnescape(parts[1])
	if errA != nil || errB != nil {
		return "", "", false
	}
	return a, b, true
}

type confirmationPageData struct {
	Decision       string
	MessageRef     string
	CorrelationKey string
	PostURL        string
}

var confirmationPage = template.Must(template.New("confirm").Parse(`<!DOCTYPE html>
<html><head><title>Confirm {{.Decision}}</title></head>
<body>
<h1>Confirm {{.Decision}}</h1>
<p>Message: {{.MessageRef}} / {{.CorrelationKey}}</p>
<form method="POST" action="{{.PostURL}}">
<button type="submit">Confirm {{.Decision}}</button>
</form>
</body></html>
`))

var thankYouPage = template.Must(template.New("thanks").Parse(`<!DOCTYPE html>
<html><head><title>Recorded</title></head>
<body><h1>Your response has been recorded: {{.Decision}}</h1></body></html>
`))
