package models

import "mime/multipart"

// UploadedFile is one client-submitted file as seen by the HTTP layer.
// Name is only used to derive the staged file's extension.
type UploadedFile struct {
	Name     string
	MimeType string
	Size     int64
	Header   *multipart.FileHeader
}
