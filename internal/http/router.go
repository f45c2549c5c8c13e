// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"scout/internal/http/handlers"
	"scout/internal/http/middleware"
	"scout/internal/infra"
)

// RouterDeps are the collaborators of the router. Verifier may be nil, in
// which case every search is anonymous.
type RouterDeps struct {
	Search   handlers.Searcher
	Verifier infra.TokenVerifier
	Logger   *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	searchHandler := handlers.NewSearchHandler(deps.Search)
	r.GET("/debug/stats", searchHandler.Stats)

	api := r.Group("/api", middleware.OptionalAuth(deps.Verifier))
	api.POST("/search", searchHandler.Search)
	api.GET("/search/:requestId/assist", searchHandler.Assist)

	return r
}
