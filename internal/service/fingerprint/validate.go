package fingerprint

import (
	"mime/multipart"
	"strings"

	"github.com/samber/lo"

	"audiofp/internal/models"
)

// FormField is the multipart field carrying the audio file.
const FormField = "audio"

// AllowedMimeTypes lists the declared content types accepted for upload.
var AllowedMimeTypes = []string{
	"audio/mpeg",
	"audio/wav",
	"audio/ogg",
	"audio/flac",
	"audio/mp3",
	"audio/x-m4a",
}

// ValidateUpload picks the first file under the audio field and checks its
// declared content type. A nil form is treated as an upload without files.
func ValidateUpload(form *multipart.Form) (*models.UploadedFile, error) {
	if form == nil || len(form.File[FormField]) == 0 {
		return nil, &ClientInputError{Message: MsgNoFile}
	}
	header := form.File[FormField][0]
	if header == nil {
		return nil, &ClientInputError{Message: MsgNoFile}
	}

	mimeType := normalizeMime(header.Header.Get("Content-Type"))
	if !lo.Contains(AllowedMimeTypes, mimeType) {
		return nil, &ClientInputError{Message: MsgInvalidType}
	}

	return &models.UploadedFile{
		Name:     header.Filename,
		MimeType: mimeType,
		Size:     header.Size,
		Header:   header,
	}, nil
}

// normalizeMime lower-cases a content type and drops its parameters.
func normalizeMime(v string) string {
	base, _, _ := strings.Cut(v, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
