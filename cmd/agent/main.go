package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cutroom/cutroom-agent/internal/api"
	"github.com/cutroom/cutroom-agent/internal/config"
	"github.com/cutroom/cutroom-agent/internal/db"
	"github.com/cutroom/cutroom-agent/internal/export"
	"github.com/cutroom/cutroom-agent/internal/library"
	"github.com/cutroom/cutroom-agent/internal/logging"
	"github.com/cutroom/cutroom-agent/internal/media"
	"github.com/cutroom/cutroom-agent/internal/pipeline"
	"github.com/cutroom/cutroom-agent/internal/player"
	"github.com/cutroom/cutroom-agent/internal/preview"
	"github.com/cutroom/cutroom-agent/internal/stream"
	"github.com/cutroom/cutroom-agent/internal/timecode"
	"github.com/cutroom/cutroom-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting cutroom agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := library.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                    CUTROOM AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	var ffmpeg pipeline.FFmpeg
	if cfg.StubFFmpeg() {
		logger.Warn("encoder boundary running in stub mode")
		ffmpeg = pipeline.NewStubFFmpeg(logging.WithComponent(logger, "ffmpeg"))
	} else {
		ffmpeg = pipeline.NewRealFFmpeg(logging.WithComponent(logger, "ffmpeg"))
	}

	lib := library.NewService(repo, ffmpeg, logging.WithComponent(logger, "library"))
	if err := lib.Load(context.Background()); err != nil {
		return fmt.Errorf("failed to load clip library: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Two independent surfaces: the visible one the player owns, and a
	// hidden one the preview pipeline seeks without disturbing playback.
	visibleSurface := media.NewFileSurface(ffmpeg, logging.WithComponent(logger, "surface"))
	captureSurface := media.NewFileSurface(ffmpeg, logging.WithComponent(logger, "capture"))

	pl := player.New(visibleSurface, lib.Sequence, logging.WithComponent(logger, "player"))
	go pl.Run(ctx)

	prev := preview.New(preview.Config{
		Surface:  captureSurface,
		Sequence: lib.Sequence,
		Logger:   logging.WithComponent(logger, "preview"),
	})

	// Edits invalidate any half-applied preview or scrub state.
	lib.SetChangeListener(func() {
		prev.Cancel()
	})

	hub := api.NewHub(logging.WithComponent(logger, "ws"))
	pl.SetTimeListener(func(t float64) {
		hub.BroadcastPosition(t, pl.Status())
	})

	exporter := export.NewRunner(repo, ffmpeg, lib.Sequence, cfg.ExportDir(), logging.WithComponent(logger, "export"))

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Library:    lib,
		Repository: repo,
		Player:     pl,
		Preview:    prev,
		Stream:     stream.NewServer(logging.WithComponent(logger, "stream")),
		Exporter:   exporter,
		Hub:        hub,
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Player: pl,
			Logger: logging.WithComponent(logger, "tray"),
			OnQuit: func() {
				close(quitCh)
			},
		})
		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					st := pl.Status()
					tray.UpdateStatus(st.State, timecode.Duration(st.Position))
					tray.UpdateClipCount(len(lib.Sequence()))
				}
			}
		}()
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureDeviceID(repo library.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo library.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
