// internal/service/tracking_service.go
package service

import (
    "encoding/base64"
    "fmt"
    "html"
    "log"
    "regexp"
    "strings"
)

// TrackingService injects open/click tracking indirection into HTML bodies
// and owns the URL-safe token encoding shared with the tracking endpoints.
// Enablement is an explicit config value, not ambient state: when disabled,
// both rewriters are no-ops.
type TrackingService struct {
    baseURL string
    enabled bool
}

func NewTrackingService(baseURL string, enabled bool) *TrackingService {
    return &TrackingService{
        baseURL: strings.TrimRight(baseURL, "/"),
        enabled: enabled,
    }
}

func (ts *TrackingService) Enabled() bool {
    return ts.enabled
}

// hrefRe finds href attribute values inside anchor tags. Best-effort over
// real-world HTML, same shape as the link scanner the generation pipeline
// has always used.
var hrefRe = regexp.MustCompile(`(?i)<a\s+(?:[^>]*?\s+)?href="([^"]*)"`)

// EmbedOpenPixel appends a 1x1 invisible image pointing at the open-tracking
// endpoint, just before </body> when present, else at the end of the body.
func (ts *TrackingService) EmbedOpenPixel(body string, batchID int, recipientID string) string {
    if !ts.enabled {
        return body
    }
    if strings.Contains(body, "/tracking/open/") {
        return body // pixel already embedded during generation
    }

    trackingURL := fmt.Sprintf("%s/tracking/open/%d/%s", ts.baseURL, batchID, EncodeToken(recipientID))
    pixel := `<img src="` + html.EscapeString(trackingURL) + `" width="1" height="1" alt="" style="display:none;"/>`

    if strings.Contains(body, "</body>") {
        return strings.Replace(body, "</body>", pixel+"</body>", 1)
    }
    return body + pixel
}

// RewriteLinks rewrites every anchor href to the click-tracking endpoint,
// carrying the batch id, recipient identifier and the reversibly-encoded
// original URL. mailto:, fragment links and already-tracked links are left
// alone, so a second pass is a no-op.
func (ts *TrackingService) RewriteLinks(body string, batchID int, recipientID string) string {
    if !ts.enabled {
        return body
    }

    clickPrefix := fmt.Sprintf("%s/tracking/click/", ts.baseURL)

    return replaceAllSubmatchFunc(hrefRe, body, func(m []string) string {
        originalURL := m[1]

        if strings.HasPrefix(originalURL, "mailto:") || strings.HasPrefix(originalURL, "#") {
            return m[0]
        }
        if strings.Contains(originalURL, "/tracking/click/") {
            return m[0] // already rewritten
        }

        trackingURL := fmt.Sprintf("%s%d/%s/%s",
            clickPrefix, batchID, EncodeToken(recipientID), EncodeToken(originalURL))

        return strings.Replace(m[0], originalURL, html.EscapeString(trackingURL), 1)
    })
}

// EncodeToken encodes a string as URL-safe base64 without padding.
func EncodeToken(s string) string {
    return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// DecodeToken reverses EncodeToken. Padding-tolerant: trailing '=' are
// accepted and stripped before decoding. Returns an error instead of ever
// panicking past the tracking surface.
func DecodeToken(s string) (string, error) {
    s = strings.TrimRight(s, "=")
    decoded, err := base64.RawURLEncoding.DecodeString(s)
    if err != nil {
        log.Printf("⚠️ failed to decode tracking token %q: %v", s, err)
        return "", err
    }
    return string(decoded), nil
}
