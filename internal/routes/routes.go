package route

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cmla-cc/shortlink/internal/handler"
	"github.com/cmla-cc/shortlink/internal/middleware"
)

func SetupRouter(linkHandler *handler.LinkHandler, allowedOrigin string) *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{allowedOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RequestID())
	r.Use(middleware.MetricsMiddleware())

	r.POST("/links", linkHandler.CreateLink)
	r.GET("/links", linkHandler.GetLink)
	r.GET("/s/*alias", linkHandler.Resolve)
	r.GET("/api/*path", linkHandler.LegacyRedirect)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
