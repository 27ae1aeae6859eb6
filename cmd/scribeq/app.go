package main

import (
	"fmt"

	"github.com/scribeq/scribeq/internal/acquire"
	"github.com/scribeq/scribeq/internal/app"
	"github.com/scribeq/scribeq/internal/cache"
	"github.com/scribeq/scribeq/internal/infra/config"
	"github.com/scribeq/scribeq/internal/infra/logger"
	"github.com/scribeq/scribeq/internal/media"
	"github.com/scribeq/scribeq/internal/platform"
	"github.com/scribeq/scribeq/internal/queue"
	"github.com/scribeq/scribeq/internal/resolve"
	"github.com/scribeq/scribeq/internal/sink"
	"github.com/scribeq/scribeq/internal/store"
	"github.com/scribeq/scribeq/internal/transcribe"
	"github.com/scribeq/scribeq/internal/validate"
)

// services is the wired object graph shared by the daemon and the
// one-shot command.
type services struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *store.Store
	cache   *cache.DownloadCache
	manager *queue.Manager
	appCtx  *app.Context
}

// buildServices loads configuration and assembles every component.
// loadExisting controls whether the persisted queue is restored.
func buildServices(loadExisting bool) (*services, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	extra := ""
	if cfg.Transcriber.Backend == "whispercli" {
		extra = cfg.Transcriber.Binary
	}
	for _, warning := range platform.CheckTools(extra) {
		log.Warn("%s", warning)
	}

	// Media tools are optional at startup: without them validation falls
	// back to size checks and clip extraction reports its own error.
	var prober media.Prober
	if p, err := media.NewFFProbe(); err == nil {
		prober = p
	}
	var clipper media.Clipper
	if c, err := media.NewFFmpeg(); err == nil {
		clipper = c
	}

	validator := validate.New(prober)

	dlCache, err := cache.New(cfg.Download.CacheDir, cfg.Download.CacheTTL, validator.Check)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open download cache: %w", err)
	}

	acquirer := acquire.New(cfg.Download.Dir, cfg.Download.ChunkSize, cfg.Download.Concurrency, validator.Check, log)
	resolver := resolve.New(resolve.NewYouTubeClient(), log)

	transcriber, err := buildTranscriber(cfg, prober, clipper, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	sinkRouter, err := buildSink(cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open queue store: %w", err)
	}

	pipeline := queue.NewPipeline(cfg, acquirer, resolver, dlCache, validator, transcriber, sinkRouter, log)
	manager := queue.NewManager(st, pipeline, log, loadExisting)

	appCtx := app.NewContext(cfg, log)
	appCtx.Queue = manager
	appCtx.Cache = dlCache

	return &services{
		cfg:     cfg,
		log:     log,
		store:   st,
		cache:   dlCache,
		manager: manager,
		appCtx:  appCtx,
	}, nil
}

func (s *services) close() {
	if err := s.store.Close(); err != nil {
		s.log.Warn("failed to close store: %v", err)
	}
	s.log.Close()
}

func buildTranscriber(cfg *config.Config, prober media.Prober, clipper media.Clipper, log *logger.Logger) (transcribe.Transcriber, error) {
	switch cfg.Transcriber.Backend {
	case "openai":
		return transcribe.NewOpenAI(cfg.Transcriber.OpenAIBase, cfg.Transcriber.OpenAIKey, cfg.Transcriber.OpenAIModel, cfg.Transcriber.Language, prober, clipper, log), nil
	default:
		return transcribe.NewWhisperCLI(cfg.Transcriber.Binary, cfg.Transcriber.Model, cfg.Transcriber.Language, prober, clipper, log)
	}
}

// buildSink assembles the output router. When mode is "both" and no
// clipboard tool exists the mode quietly degrades to file-only; a
// headless box should not lose its transcripts over a missing xclip.
func buildSink(cfg *config.Config, log *logger.Logger) (*sink.Router, error) {
	mode := cfg.Output.Mode

	var clip sink.Sink
	if mode == sink.ModeClipboard || mode == sink.ModeBoth {
		c, err := sink.NewClipboard(cfg.Output.ClipboardCommand, log)
		if err != nil {
			if mode == sink.ModeClipboard {
				return nil, fmt.Errorf("clipboard output unavailable: %w", err)
			}
			log.Warn("clipboard output unavailable, writing files only: %v", err)
			mode = sink.ModeFile
		} else {
			clip = c
		}
	}

	var file sink.Sink
	if mode == sink.ModeFile || mode == sink.ModeBoth {
		f, err := sink.NewFileSink(cfg.Output.Dir, log)
		if err != nil {
			return nil, fmt.Errorf("transcript directory unavailable: %w", err)
		}
		file = f
	}

	return sink.NewRouter(mode, clip, file), nil
}
