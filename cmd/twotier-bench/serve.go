package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/kirky-x/twotier/internal/httpapi"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured cache over HTTP (GET/PUT/DELETE on /keys/:key)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, logger, err := buildCache()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := cache.Start(ctx); err != nil {
				return err
			}

			gin.SetMode(gin.ReleaseMode)
			router := gin.New()
			router.Use(httpapi.Logger(logger), httpapi.Recovery(logger))

			handler := httpapi.NewHandler(cache, logger)
			handler.Register(router)

			router.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"service": serviceName, "status": "ok"})
			})

			srv := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}

			go func() {
				logger.Info("twotier-bench: listening", "addr", addr, "service", serviceName)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("twotier-bench: server error", err)
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			logger.Info("twotier-bench: shutting down", "service", serviceName)
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer shutdownCancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("twotier-bench: server shutdown error", err)
			}
			cancel()
			return cache.Close()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
