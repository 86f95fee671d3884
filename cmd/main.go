package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/lgpd-explica/api"
	"github.com/fyerfyer/lgpd-explica/api/handler"
	"github.com/fyerfyer/lgpd-explica/api/middleware"
	qaconfig "github.com/fyerfyer/lgpd-explica/config"
	"github.com/fyerfyer/lgpd-explica/internal/app"
	"github.com/gin-gonic/gin"
)

// 命令行参数，非空时覆盖配置文件
type flags struct {
	ConfigFile string
	Port       int
	Mode       string
	LogLevel   string
	Document   string
	LazyInit   bool
}

func main() {
	f := parseFlags()

	cfg, err := qaconfig.Load(f.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	logger := middleware.SetupLogger(middleware.LogOptions{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	logger.Info("Starting LGPD-Explica...")

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to assemble application: %v", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release resources")
		}
	}()

	// 默认在启动时完成初始化，失败时进入降级模式而不是退出
	if !f.LazyInit {
		application.Initialize(context.Background())
	}

	pageHandler, err := handler.NewPageHandler(application.QA)
	if err != nil {
		logger.Fatalf("Failed to load page template: %v", err)
	}
	r := api.SetupRouter(handler.NewQAHandler(application.QA), pageHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() flags {
	f := flags{}

	flag.StringVar(&f.ConfigFile, "config", "config.yaml", "Path to config file")
	flag.IntVar(&f.Port, "port", 0, "Server port (overrides config)")
	flag.StringVar(&f.Mode, "mode", "", "Run mode: debug/release (overrides config)")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level: debug/info/warn/error (overrides config)")
	flag.StringVar(&f.Document, "document", "", "Path of the LGPD document (overrides config)")
	flag.BoolVar(&f.LazyInit, "lazy-init", false, "Build the knowledge base on the first question instead of at startup")

	flag.Parse()
	return f
}

// applyFlags 只覆盖命令行上显式设置的值
func applyFlags(cfg *qaconfig.Config, f flags) {
	if f.Port > 0 {
		cfg.Server.Port = f.Port
	}
	if f.Mode != "" {
		cfg.Server.Mode = f.Mode
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.Document != "" {
		cfg.Document.Path = f.Document
	}
}
