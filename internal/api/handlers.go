package api

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"audiofp/internal/models"
	"audiofp/internal/observability"
	"audiofp/internal/service/fingerprint"
)

// multipartOverhead is allowed on top of the file limit for boundaries and headers.
const multipartOverhead = 1 << 20

// Fingerprinter runs the fingerprint pipeline for one validated upload.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, file *models.UploadedFile) (*fingerprint.Result, error)
}

// Handler wires HTTP routes to the fingerprint service.
type Handler struct {
	fingerprints   Fingerprinter
	publicDir      string
	maxUploadBytes int64
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewHandler constructs a Handler instance.
// A nil metrics records nothing.
func NewHandler(svc Fingerprinter, publicDir string, maxUploadBytes int64, metrics *observability.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		fingerprints:   svc,
		publicDir:      publicDir,
		maxUploadBytes: maxUploadBytes,
		metrics:        metrics,
		logger:         logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.root)
	router.GET("/health", h.health)

	api := router.Group("/api")
	api.GET("/hello", h.hello)
	api.POST("/fingerprint", h.generateFingerprint)

	router.NoRoute(h.static)
}

func (h *Handler) generateFingerprint(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		if isTooLarge(err) {
			h.writeError(c, err)
			return
		}
		// Anything else unreadable counts as an upload without a file.
		form = nil
	}
	if form != nil {
		defer form.RemoveAll()
	}

	if h.oversized(form) {
		h.writeError(c, errFileTooLarge)
		return
	}
	file, err := fingerprint.ValidateUpload(form)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.fingerprints.Fingerprint(c.Request.Context(), file)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fingerprint.MsgSuccess,
		"data":    res.Data,
	})
}

// oversized reports whether the file that would be validated exceeds the
// upload limit. Size is checked before type.
func (h *Handler) oversized(form *multipart.Form) bool {
	if form == nil {
		return false
	}
	files := form.File[fingerprint.FormField]
	return len(files) > 0 && files[0] != nil && files[0].Size > h.maxUploadBytes
}

func (h *Handler) hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello, World!"})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) root(c *gin.Context) {
	if index, ok := h.publicFile("/index.html"); ok {
		c.File(index)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Audio Fingerprinting Server!"})
}

// static serves files from the public directory for unmatched GET and HEAD requests.
func (h *Handler) static(c *gin.Context) {
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		if file, ok := h.publicFile(c.Request.URL.Path); ok {
			c.File(file)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

// publicFile resolves urlPath inside the public directory. Cleaning against
// the root keeps ".." segments from leaving it.
func (h *Handler) publicFile(urlPath string) (string, bool) {
	if h.publicDir == "" {
		return "", false
	}
	clean := path.Clean("/" + urlPath)
	if clean == "/" {
		clean = "/index.html"
	}
	full := filepath.Join(h.publicDir, filepath.FromSlash(clean))
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return full, true
}

var errFileTooLarge = errors.New("uploaded file exceeds size limit")
