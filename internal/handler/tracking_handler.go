// internal/handler/tracking_handler.go
package handler

import (
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/repository"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

// pixelGIF is a 1x1 transparent GIF, served for every open-tracking hit.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3B,
}

// TrackingHandler serves the open pixel and the click redirect. Both
// endpoints degrade silently: a malformed or tampered token must never
// break the recipient's mail client, so the pixel is always served and a
// broken click falls back to a safe redirect. With tracking globally
// disabled the endpoints keep responding but record nothing, since already
// delivered emails still carry tracking URLs.
type TrackingHandler struct {
	Events   repository.TrackingEventRepositoryInterface
	Tracking *service.TrackingService
}

// TrackOpen handles GET /tracking/open/{batchId}/{recipientToken}.
func (h *TrackingHandler) TrackOpen(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.Atoi(chi.URLParam(r, "batchId"))
	if err == nil {
		if recipientID, decErr := service.DecodeToken(chi.URLParam(r, "recipientToken")); decErr == nil {
			h.record(r, &model.TrackingEvent{
				BatchID:     batchID,
				RecipientID: recipientID,
				Type:        model.TrackingEventOpen,
			})
		}
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", strconv.Itoa(len(pixelGIF)))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}

// TrackClick handles GET /tracking/click/{batchId}/{recipientToken}/{urlToken}
// and redirects to the decoded destination.
func (h *TrackingHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.Atoi(chi.URLParam(r, "batchId"))
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	recipientID, err := service.DecodeToken(chi.URLParam(r, "recipientToken"))
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	destination, err := service.DecodeToken(chi.URLParam(r, "urlToken"))
	if err != nil || !isSafeRedirect(destination) {
		log.Printf("⚠️ rejected click redirect for batch %d: %q", batchID, destination)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	h.record(r, &model.TrackingEvent{
		BatchID:     batchID,
		RecipientID: recipientID,
		Type:        model.TrackingEventClick,
		LinkURL:     destination,
	})

	http.Redirect(w, r, destination, http.StatusFound)
}

// record persists an event best-effort; tracking storage failures never
// surface to the recipient.
func (h *TrackingHandler) record(r *http.Request, ev *model.TrackingEvent) {
	if h.Tracking != nil && !h.Tracking.Enabled() {
		return
	}
	ev.TrackedAt = time.Now()
	ev.IPAddress = realIP(r)
	ev.UserAgent = r.UserAgent()
	if err := h.Events.Create(ev); err != nil {
		log.Printf("⚠️ failed to record %s event for batch %d: %v", ev.Type, ev.BatchID, err)
	}
}

// isSafeRedirect accepts only absolute http(s) URLs as click destinations.
func isSafeRedirect(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// realIP prefers proxy headers over the raw remote address.
func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
