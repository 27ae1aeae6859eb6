package queue

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/scribeq/scribeq/internal/acquire"
	"github.com/scribeq/scribeq/internal/domain"
	"github.com/scribeq/scribeq/internal/infra/config"
	"github.com/scribeq/scribeq/internal/infra/logger"
	"github.com/scribeq/scribeq/internal/resolve"
)

// Acquirer downloads remote audio into the managed directory.
type Acquirer interface {
	Fetch(ctx context.Context, rawURL, preferredName string) (string, error)
	FetchChunked(ctx context.Context, rawURL, preferredName string) (string, error)
	Progress() acquire.Progress
}

// Resolver turns a video page URL into a direct audio stream.
type Resolver interface {
	Resolve(ctx context.Context, rawURL, quality string) (*resolve.Resolved, error)
}

// Cache maps source URLs to previously downloaded files.
type Cache interface {
	Lookup(ctx context.Context, url string) (string, bool)
	Store(url, path string) error
}

// Validator rejects files that cannot be transcribed.
type Validator interface {
	Check(ctx context.Context, path string) error
}

// Transcriber produces the transcript for a local audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Sink delivers a finished transcript somewhere useful.
type Sink interface {
	Write(ctx context.Context, name, text string) error
}

// Pipeline runs a single queue item through source resolution, download,
// validation, transcription and delivery. It implements Runner.
type Pipeline struct {
	cfg         *config.Config
	acquirer    Acquirer
	resolver    Resolver
	cache       Cache
	validator   Validator
	transcriber Transcriber
	sink        Sink
	log         *logger.Logger

	// downloading gates Progress so a finished download's 100% does not
	// bleed into the next item.
	downloading atomic.Bool
}

func NewPipeline(cfg *config.Config, acquirer Acquirer, resolver Resolver, cache Cache, validator Validator, transcriber Transcriber, sink Sink, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		cfg:         cfg,
		acquirer:    acquirer,
		resolver:    resolver,
		cache:       cache,
		validator:   validator,
		transcriber: transcriber,
		sink:        sink,
		log:         log,
	}
}

// Progress reports the download fraction of the current item, or zero
// when nothing is being downloaded.
func (p *Pipeline) Progress() float64 {
	if !p.downloading.Load() {
		return 0
	}
	return p.acquirer.Progress().Fraction
}

// Run processes one item. The returned Outcome may be non-nil alongside
// an error when the transcript exists but delivery failed.
func (p *Pipeline) Run(ctx context.Context, item *domain.Item) (*Outcome, error) {
	outcome := &Outcome{}

	path, err := p.materialize(ctx, item, outcome)
	if err != nil {
		return nil, err
	}
	outcome.LocalPath = path

	if err := p.validator.Check(ctx, path); err != nil {
		return nil, err
	}

	text, err := p.transcriber.Transcribe(ctx, path)
	if err != nil {
		return nil, err
	}
	outcome.Text = text

	if p.cfg.Download.AutoDelete && item.Source.Kind != domain.KindLocal {
		if err := os.Remove(path); err != nil {
			p.log.Warn("failed to remove downloaded file %s: %v", path, err)
		} else {
			outcome.LocalPath = ""
		}
	}

	name := outcome.Name
	if name == "" {
		name = item.Name
	}
	if err := p.sink.Write(ctx, name, text); err != nil {
		return outcome, fmt.Errorf("failed to deliver transcript: %w", err)
	}

	return outcome, nil
}

// materialize returns a local path for the item's source, downloading
// and caching as needed.
func (p *Pipeline) materialize(ctx context.Context, item *domain.Item, outcome *Outcome) (string, error) {
	switch item.Source.Kind {
	case domain.KindLocal:
		return item.Source.Raw, nil

	case domain.KindRemote:
		if path, ok := p.cache.Lookup(ctx, item.Source.Raw); ok {
			p.log.Info("cache hit for %s", item.Source.Raw)
			return path, nil
		}
		path, err := p.download(ctx, item.Source.Raw, downloadName(item), false)
		if err != nil {
			return "", err
		}
		p.remember(item.Source.Raw, path)
		return path, nil

	case domain.KindRemoteSource:
		resolved, err := p.resolver.Resolve(ctx, item.Source.Raw, p.cfg.Remote.Quality)
		if err != nil {
			return "", err
		}
		outcome.Name = resolved.Title

		// Cache under the page URL. Stream URLs carry expiring tokens and
		// would never match again.
		if path, ok := p.cache.Lookup(ctx, item.Source.Raw); ok {
			p.log.Info("cache hit for %s", item.Source.Raw)
			return path, nil
		}
		path, err := p.download(ctx, resolved.StreamURL, resolved.Title, true)
		if err != nil {
			return "", err
		}
		p.remember(item.Source.Raw, path)
		return path, nil
	}

	return "", fmt.Errorf("unknown source kind %q", item.Source.Kind)
}

func (p *Pipeline) download(ctx context.Context, rawURL, name string, chunked bool) (string, error) {
	p.downloading.Store(true)
	defer p.downloading.Store(false)

	if chunked {
		return p.acquirer.FetchChunked(ctx, rawURL, name)
	}
	return p.acquirer.Fetch(ctx, rawURL, name)
}

// downloadName is the caller-chosen display name, or empty when the item
// name is just the URL echoed back, so the acquirer can derive something
// better from the response.
func downloadName(item *domain.Item) string {
	if item.Name == item.Source.Raw {
		return ""
	}
	return item.Name
}

// remember records a finished download unless it is about to be deleted
// again anyway.
func (p *Pipeline) remember(url, path string) {
	if p.cfg.Download.AutoDelete {
		return
	}
	if err := p.cache.Store(url, path); err != nil {
		p.log.Warn("failed to cache download for %s: %v", url, err)
	}
}
