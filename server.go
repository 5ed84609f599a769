package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitbucket.org/movilfix/taller_backend/config"
	"bitbucket.org/movilfix/taller_backend/models"
	"bitbucket.org/movilfix/taller_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	router := gin.Default()
	router.Use(cors.New(corsConfig()))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", identityMiddleware())
	registerRoutes(api)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start listening first; the container must bind $PORT quickly. DB and
	// redis connect in the background with their own retries.
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()
	log.Printf("taller backend ready on :%s", port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	origins := os.Getenv("CORS_ORIGINS")
	if origins == "" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{origins}
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "X-Organization-Id", "X-User-Id", "X-User-Name")
	return cfg
}

// identityMiddleware copies the already-authenticated caller identity from
// headers into the request context. Authentication itself happens upstream;
// this service only threads the scope through.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId := c.GetHeader("X-Organization-Id")
		if organizationId == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-Organization-Id header is required"})
			return
		}

		ctx := c.Request.Context()
		ctx = utils.SetOrganizationIdInContext(ctx, organizationId)
		ctx = utils.SetUserIdInContext(ctx, intHeader(c, "X-User-Id"))
		ctx = utils.SetUserNameInContext(ctx, c.GetHeader("X-User-Name"))
		ctx = utils.SetClientIpInContext(ctx, c.ClientIP())
		ctx = utils.SetUserAgentInContext(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func intHeader(c *gin.Context, name string) int {
	v := c.GetHeader(name)
	if v == "" {
		return 0
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
