package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"audiofp/internal/config"
)

// NewRouter builds the gin engine with middleware, routes and, when enabled,
// the metrics endpoint served by metrics.
func NewRouter(h *Handler, cfg *config.Config, metrics http.Handler, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	// Parsed parts beyond this spill to temporary files.
	router.MaxMultipartMemory = 8 << 20
	router.Use(RequestID(), RequestLogger(logger), Recovery(logger), CORS(cfg.Server.CORSOrigins))

	if cfg.Metrics.Enabled && metrics != nil {
		router.GET(cfg.Metrics.Endpoint, gin.WrapH(metrics))
	}
	h.RegisterRoutes(router)
	return router
}
