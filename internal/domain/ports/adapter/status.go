package adapter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/erocrawler/gmanimato/internal/domain/model"
)

// HTTPError carries the status code of a non-2xx backend response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("render backend returned %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

// MapProviderStatus translates the remote provider's status vocabulary into
// the internal one. Unknown values map to in_queue and ok=false so the caller
// can log a warning; the mapping itself never fails.
func MapProviderStatus(provider string) (status model.EntryStatus, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(provider)) {
	case "IN_QUEUE":
		return model.EntryStatusInQueue, true
	case "IN_PROGRESS":
		return model.EntryStatusProcessing, true
	case "COMPLETED":
		return model.EntryStatusCompleted, true
	case "FAILED":
		return model.EntryStatusFailed, true
	default:
		return model.EntryStatusInQueue, false
	}
}

// MapCallbackStatus translates the local-worker callback vocabulary,
// case-insensitively. Cancelled collapses into failed.
func MapCallbackStatus(s string) (status model.EntryStatus, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return model.EntryStatusInQueue, true
	case "processing":
		return model.EntryStatusProcessing, true
	case "completed":
		return model.EntryStatusCompleted, true
	case "failed", "cancelled":
		return model.EntryStatusFailed, true
	default:
		return "", false
	}
}

// remoteStorageType marks an output file whose URL points at object storage
// rather than an inline or worker-local artifact.
const remoteStorageType = "s3_url"

var videoExtensions = []string{".mp4", ".webm", ".mov", ".avi", ".mkv"}

// FindVideoURL returns the URL of the first remote-storage output file with a
// recognized video extension. Ties are broken by array order, not filename.
// Returns "" when no file matches.
func FindVideoURL(files []OutputFile) string {
	for _, f := range files {
		if f.Type != remoteStorageType || f.URL == "" {
			continue
		}
		name := strings.ToLower(f.Filename)
		for _, ext := range videoExtensions {
			if strings.HasSuffix(name, ext) {
				return f.URL
			}
		}
	}
	return ""
}
