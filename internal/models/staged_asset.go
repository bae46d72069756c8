package models

import "time"

// StagedAsset is an uploaded file materialized under the private upload
// directory. The path is unique per request and removed when processing ends.
type StagedAsset struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	DetectedMime string    `json:"detected_mime"`
	Size         int64     `json:"size"`
	ContentHash  string    `json:"content_hash"`
	CreatedAt    time.Time `json:"created_at"`
}
