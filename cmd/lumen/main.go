// Command lumen runs the assistive vision service: camera capture,
// object detection, scene narration, spoken announcements, and the
// HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumenlabs/go-lumen/internal/config"
	"github.com/lumenlabs/go-lumen/internal/log"
	"github.com/lumenlabs/go-lumen/pkg/auth"
	"github.com/lumenlabs/go-lumen/pkg/camera"
	"github.com/lumenlabs/go-lumen/pkg/detect"
	"github.com/lumenlabs/go-lumen/pkg/detlog"
	"github.com/lumenlabs/go-lumen/pkg/inference"
	"github.com/lumenlabs/go-lumen/pkg/memory"
	"github.com/lumenlabs/go-lumen/pkg/perception"
	"github.com/lumenlabs/go-lumen/pkg/reason"
	"github.com/lumenlabs/go-lumen/pkg/speech"
	"github.com/lumenlabs/go-lumen/pkg/store"
	"github.com/lumenlabs/go-lumen/pkg/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	persistence, err := memory.NewJSONFile(filepath.Join(cfg.DataDir, "memory.json"))
	if err != nil {
		return err
	}
	mem, err := memory.NewStore(provider, memory.Config{
		Persistence: persistence,
		Logger:      log.L(),
	})
	if err != nil {
		return err
	}
	defer mem.Close()

	events, err := detlog.New(filepath.Join(cfg.DataDir, "detections.jsonl"))
	if err != nil {
		return err
	}

	reasoner := reason.New(provider, mem, events, reason.Config{
		Cooldown:      time.Duration(cfg.CooldownSeconds) * time.Second,
		VisionTimeout: cfg.VisionTimeout,
		Language:      cfg.Language,
		Faces:         db,
		Logger:        log.L(),
	})

	announcer := speech.NewChannel(
		speech.NewEdge(cfg.Voice),
		&speech.ALSAPlayer{},
		speech.ChannelConfig{Logger: log.L()},
	)

	state := perception.NewState()
	active := &auth.ActiveUser{}
	loop := perception.NewLoop(
		func() (camera.Source, error) { return camera.OpenWebcam(cfg.CameraIndex) },
		func() (detect.Detector, error) {
			yoloCfg := detect.DefaultYOLOConfig()
			yoloCfg.ModelPath = cfg.ModelPath
			return detect.NewYOLO(yoloCfg)
		},
		reasoner, announcer, state,
		perception.Config{
			DetectionInterval: cfg.DetectionInterval,
			UserID:            active.Current,
			Logger:            log.L(),
		},
	)

	server := web.NewServer(web.Deps{
		State:    state,
		Loop:     loop,
		Audio:    announcer,
		Asker:    reasoner,
		Events:   events,
		Users:    db,
		Sessions: auth.NewSessions(cfg.SessionSecret, 0),
		Google:   auth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
		Active:   active,
		Logger:   log.L(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loop.Run(ctx)
		return nil
	})
	g.Go(func() error {
		announcer.Run(ctx)
		return nil
	})
	g.Go(func() error {
		server.BroadcastStatus(ctx, time.Second)
		return nil
	})
	g.Go(func() error {
		return server.Start(cfg.Addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown()
	})

	log.Info("lumen started", "addr", cfg.Addr)
	return g.Wait()
}

// buildProvider assembles the inference fallback chain: Gemini first
// when configured, then any OpenAI-compatible endpoint.
func buildProvider(cfg config.Config) (inference.Provider, error) {
	var providers []inference.Provider

	if cfg.GeminiAPIKey != "" {
		gemini, err := inference.NewGemini(
			inference.WithAPIKey(cfg.GeminiAPIKey),
			inference.WithTimeout(cfg.VisionTimeout),
			inference.WithLogger(log.L()),
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, gemini)
	}

	if cfg.OpenAIAPIKey != "" {
		client, err := inference.NewClient(
			inference.WithAPIKey(cfg.OpenAIAPIKey),
			inference.WithBaseURL(cfg.OpenAIBaseURL),
			inference.WithTimeout(cfg.VisionTimeout),
			inference.WithLogger(log.L()),
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, client)
	}

	switch len(providers) {
	case 0:
		return nil, fmt.Errorf("set GOOGLE_API_KEY or OPENAI_API_KEY")
	case 1:
		return providers[0], nil
	default:
		return inference.NewChainWithLogger(log.L(), providers...)
	}
}
