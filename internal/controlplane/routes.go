package controlplane

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const defaultRate = "20-S"

type RouteConfig struct {
	// Rate is the per-client request rate, "20-S" when empty.
	Rate string
}

func SetupRoutes(b Bridge, cfg RouteConfig) (http.Handler, error) {
	if cfg.Rate == "" {
		cfg.Rate = defaultRate
	}
	rateLimiter, err := RateLimiter(cfg.Rate)
	if err != nil {
		return nil, err
	}

	h := NewHandler(b)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(Logger())
	r.Use(CORS())
	r.Use(SecureHeaders())
	r.Use(Gzip())
	r.Use(rateLimiter)

	r.GET("/", h.Index)

	v1 := r.Group("/v1")
	{
		v1.GET("/status", h.Status)
		v1.GET("/deps", h.Deps)

		v1Conflicts := v1.Group("/conflicts")
		{
			v1Conflicts.GET("", h.Conflicts)
			v1Conflicts.POST("/resolve", h.ResolveConflict)
		}

		v1Pending := v1.Group("/pending")
		{
			v1Pending.GET("", h.Pending)
			v1Pending.POST("/confirm", h.ConfirmDelete)
			v1Pending.POST("/reject", h.RejectDelete)
		}
	}

	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		AbortWithError(c, http.StatusNotFound, ErrCodeNotFound, errors.New("not found"))
	})
	r.NoMethod(func(c *gin.Context) {
		AbortWithError(c, http.StatusMethodNotAllowed, ErrCodeNotAllowed, errors.New("method not allowed"))
	})

	return r.Handler(), nil
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
