package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handcard/internal/annotation"
	"github.com/ayusman/handcard/internal/app"
	"github.com/ayusman/handcard/internal/capture"
	"github.com/ayusman/handcard/internal/config"
	"github.com/ayusman/handcard/internal/detector"
	"github.com/ayusman/handcard/internal/enrich"
	"github.com/ayusman/handcard/internal/logging"
	"github.com/ayusman/handcard/internal/server"
	"github.com/ayusman/handcard/internal/spatial"
	"github.com/ayusman/handcard/internal/store"
	"github.com/ayusman/handcard/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	headless := flag.Bool("headless", false, "run without the system tray")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "handcard: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "handcard: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	if err := run(cfg, logger, *headless); err != nil {
		logger.Error("handcard exited", zap.Error(err))
		logging.Sync(logger)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger, headless bool) error {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	history := st.Annotations()
	if cfg.Store.MaxHistory > 0 {
		if n, err := history.Prune(cfg.Store.MaxHistory); err != nil {
			logger.Warn("pruning history", zap.Error(err))
		} else if n > 0 {
			logger.Info("pruned history", zap.Int64("removed", n))
		}
	}

	det := newDetector(cfg.Detector, logger)
	defer det.Close()

	requester, closeCache := newRequester(cfg, logger)
	defer closeCache()

	clears := annotation.NewClearCounter()
	coordinator := app.New(app.Config{
		Detector: det,
		Manager:  annotation.NewManager(clears.Value()),
		Enricher: requester,
		Dwell:    cfg.Pipeline.DwellConfig(),
		Resolver: cfg.Pipeline.Resolver(),
		Profile:  cfg.Enrichment.Profile,
		History:  history,
		Logger:   logger,
		Enabled:  cfg.Pipeline.Enabled,
	})
	clears.OnChange(coordinator.SetClearSignal)

	motion := capture.NewMotionDetector(cfg.Camera.MotionThreshold)
	defer motion.Close()

	var surfaces spatial.SurfaceQuery
	if cam := cfg.Surfaces.Camera(); cam != nil {
		surfaces = cam
	}

	preview := capture.NewPreview()
	feed := capture.NewFeed(
		capture.NewCamera(cfg.Camera.DeviceID),
		motion,
		coordinator,
		surfaces,
		capture.FeedConfig{IdleFPS: cfg.Camera.IdleFPS, ActiveFPS: cfg.Camera.ActiveFPS},
		logger,
	)
	feed.SetPreview(preview)

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		logger.Info("serving static files", zap.String("dir", staticDir))
	}

	srv := server.New(server.Config{
		StaticDir:    staticDir,
		Pipeline:     coordinator,
		Clear:        clears,
		History:      history,
		Preview:      preview,
		PushInterval: cfg.Server.PushInterval,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Logger:       logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(name string, err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		errOnce.Do(func() { firstErr = fmt.Errorf("%s: %w", name, err) })
		stop()
	}
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail(name, fn(ctx))
		}()
	}

	start("coordinator", coordinator.Run)
	start("capture", feed.Run)
	start("server", func(ctx context.Context) error {
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	})

	if headless {
		<-ctx.Done()
	} else {
		runTray(ctx, stop, coordinator, clears, "http://"+cfg.Server.Addr)
	}

	stop()
	wg.Wait()
	return firstErr
}

// runTray blocks on the tray loop until the user quits or ctx is done.
func runTray(ctx context.Context, stop context.CancelFunc, coordinator *app.Coordinator, clears *annotation.ClearCounter, url string) {
	t := tray.New()
	t.OnToggle(coordinator.SetEnabled)
	t.OnClear(func() { clears.Increment() })
	t.OnOpen(func() { openBrowser(url) })
	t.OnQuit(stop)

	go t.Watch(ctx, coordinator, 250*time.Millisecond)
	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

func newDetector(cfg config.DetectorConfig, logger *zap.Logger) detector.Detector {
	d, err := detector.NewMediaPipeDetector(cfg.Options())
	if err != nil {
		logger.Warn("mediapipe unavailable, hand detection disabled", zap.Error(err))
		return detector.NewMockDetector()
	}
	return d
}

// newRequester builds the enrichment path. The returned func releases the cache.
func newRequester(cfg *config.Config, logger *zap.Logger) (*enrich.Requester, func()) {
	gemini := enrich.NewGeminiClient(cfg.Enrichment.APIKey, cfg.Enrichment.Model)
	gemini.BaseURL = cfg.Enrichment.BaseURL
	gemini.Temperature = cfg.Enrichment.Temperature
	gemini.MaxTokens = cfg.Enrichment.MaxTokens
	if cfg.Enrichment.APIKey == "" {
		logger.Warn("no API key set, cards will show an error", zap.String("env", config.APIKeyEnv))
	}

	if !cfg.Redis.Enabled {
		return enrich.NewRequester(gemini, nil, cfg.Enrichment.Timeout, logger), func() {}
	}

	rc := enrich.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, caching disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		rc.Close()
		return enrich.NewRequester(gemini, nil, cfg.Enrichment.Timeout, logger), func() {}
	}

	logger.Info("enrichment cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	return enrich.NewRequester(gemini, rc, cfg.Enrichment.Timeout, logger), func() { rc.Close() }
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.handcard/web.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, ".handcard", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
