package fingerprint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"audiofp/internal/models"
)

// sniffLimit matches the number of bytes mimetype inspects by default.
const sniffLimit = 3072

// Stager copies uploads into the private upload directory under generated names.
type Stager struct {
	dir    string
	newID  func() string
	now    func() time.Time
	remove func(string) error
}

func NewStager(dir string) *Stager {
	return &Stager{
		dir:    dir,
		newID:  uuid.NewString,
		now:    time.Now,
		remove: os.Remove,
	}
}

// Stage writes the upload to <dir>/<uuid><ext>. A failed write leaves nothing behind.
func (s *Stager) Stage(file *models.UploadedFile) (*models.StagedAsset, error) {
	if file == nil || file.Header == nil {
		return nil, errors.New("stage: no file content")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	id := s.newID()
	path := filepath.Join(s.dir, id+safeExt(file.Name))

	src, err := file.Header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	hasher := xxhash.New()
	head := &headBuffer{limit: sniffLimit}
	size, copyErr := io.Copy(io.MultiWriter(dst, hasher, head), src)
	closeErr := dst.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if copyErr != nil {
			return nil, fmt.Errorf("write staged file: %w", copyErr)
		}
		return nil, fmt.Errorf("close staged file: %w", closeErr)
	}

	return &models.StagedAsset{
		ID:           id,
		Path:         path,
		OriginalName: file.Name,
		MimeType:     file.MimeType,
		DetectedMime: mimetype.Detect(head.buf).String(),
		Size:         size,
		ContentHash:  strconv.FormatUint(hasher.Sum64(), 16),
		CreatedAt:    s.now().UTC(),
	}, nil
}

// Remove deletes a staged file. A file that is already gone is not an error.
func (s *Stager) Remove(asset *models.StagedAsset) error {
	if asset == nil || asset.Path == "" {
		return nil
	}
	if err := s.remove(asset.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// safeExt keeps the original extension unless it could escape the file name.
func safeExt(name string) string {
	ext := filepath.Ext(name)
	if ext == "." || strings.ContainsAny(ext, `/\`) || strings.ContainsRune(ext, 0) {
		return ""
	}
	return ext
}

// headBuffer keeps the first limit bytes written to it.
type headBuffer struct {
	buf   []byte
	limit int
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.limit - len(h.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		h.buf = append(h.buf, p[:room]...)
	}
	return len(p), nil
}
