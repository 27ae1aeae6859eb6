package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/scribeq/scribeq/internal/acquire"
	"github.com/scribeq/scribeq/internal/domain"
	"github.com/scribeq/scribeq/internal/infra/config"
	"github.com/scribeq/scribeq/internal/resolve"
)

type fakeAcquirer struct {
	mu       sync.Mutex
	fetched  []string
	chunked  []string
	names    []string
	path     string
	err      error
	progress acquire.Progress
}

func (f *fakeAcquirer) Fetch(ctx context.Context, rawURL, preferredName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, rawURL)
	f.names = append(f.names, preferredName)
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

func (f *fakeAcquirer) FetchChunked(ctx context.Context, rawURL, preferredName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunked = append(f.chunked, rawURL)
	f.names = append(f.names, preferredName)
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

func (f *fakeAcquirer) Progress() acquire.Progress { return f.progress }

type fakeResolver struct {
	resolved  *resolve.Resolved
	err       error
	calls     []string
	qualities []string
}

func (f *fakeResolver) Resolve(ctx context.Context, rawURL, quality string) (*resolve.Resolved, error) {
	f.calls = append(f.calls, rawURL)
	f.qualities = append(f.qualities, quality)
	return f.resolved, f.err
}

type fakeCache struct {
	entries map[string]string
	stored  map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string), stored: make(map[string]string)}
}

func (f *fakeCache) Lookup(ctx context.Context, url string) (string, bool) {
	path, ok := f.entries[url]
	return path, ok
}

func (f *fakeCache) Store(url, path string) error {
	f.stored[url] = path
	return nil
}

type fakeValidator struct {
	err   error
	paths []string
}

func (f *fakeValidator) Check(ctx context.Context, path string) error {
	f.paths = append(f.paths, path)
	return f.err
}

type fakeTranscriber struct {
	text  string
	err   error
	paths []string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	return f.text, f.err
}

type fakeSink struct {
	err   error
	names []string
	texts []string
}

func (f *fakeSink) Write(ctx context.Context, name, text string) error {
	f.names = append(f.names, name)
	f.texts = append(f.texts, text)
	return f.err
}

type pipelineFixture struct {
	cfg         *config.Config
	acquirer    *fakeAcquirer
	resolver    *fakeResolver
	cache       *fakeCache
	validator   *fakeValidator
	transcriber *fakeTranscriber
	sink        *fakeSink
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	downloaded := filepath.Join(t.TempDir(), "downloaded.m4a")
	if err := os.WriteFile(downloaded, []byte("audio bytes"), 0644); err != nil {
		t.Fatalf("failed to write fixture file: %v", err)
	}

	cfg := &config.Config{}
	cfg.Remote.Quality = "high"

	return &pipelineFixture{
		cfg:      cfg,
		acquirer: &fakeAcquirer{path: downloaded},
		resolver: &fakeResolver{resolved: &resolve.Resolved{
			ID:        "dQw4w9WgXcQ",
			Title:     "Talk About Nothing",
			Duration:  212,
			StreamURL: "https://cdn.example.com/stream?token=abc",
			MimeType:  `audio/mp4; codecs="mp4a.40.2"`,
		}},
		cache:       newFakeCache(),
		validator:   &fakeValidator{},
		transcriber: &fakeTranscriber{text: "hello world"},
		sink:        &fakeSink{},
	}
}

func (f *pipelineFixture) pipeline() *Pipeline {
	return NewPipeline(f.cfg, f.acquirer, f.resolver, f.cache, f.validator, f.transcriber, f.sink, nil)
}

func classifiedItem(raw string) *domain.Item {
	return &domain.Item{
		ID:     "item-1",
		Name:   "",
		Source: domain.ClassifySource(raw, resolve.IsRemoteSource),
		Status: domain.StatusProcessing,
	}
}

func namedItem(raw, name string) *domain.Item {
	item := classifiedItem(raw)
	item.Name = name
	return item
}

const watchURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestPipelineLocalFlow(t *testing.T) {
	fx := newFixture(t)
	p := fx.pipeline()

	item := namedItem("/audio/meeting.mp3", "meeting.mp3")
	outcome, err := p.Run(context.Background(), item)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Text != "hello world" {
		t.Errorf("Text = %q", outcome.Text)
	}
	if outcome.LocalPath != "/audio/meeting.mp3" {
		t.Errorf("LocalPath = %q", outcome.LocalPath)
	}
	if outcome.Name != "" {
		t.Errorf("local items have no resolved name, got %q", outcome.Name)
	}

	if len(fx.validator.paths) != 1 || fx.validator.paths[0] != "/audio/meeting.mp3" {
		t.Errorf("validator saw %v", fx.validator.paths)
	}
	if len(fx.transcriber.paths) != 1 || fx.transcriber.paths[0] != "/audio/meeting.mp3" {
		t.Errorf("transcriber saw %v", fx.transcriber.paths)
	}
	if len(fx.sink.names) != 1 || fx.sink.names[0] != "meeting.mp3" || fx.sink.texts[0] != "hello world" {
		t.Errorf("sink saw names=%v texts=%v", fx.sink.names, fx.sink.texts)
	}
	if len(fx.acquirer.fetched)+len(fx.acquirer.chunked) != 0 {
		t.Error("local items must not hit the network")
	}
}

func TestPipelineLocalValidationFailure(t *testing.T) {
	fx := newFixture(t)
	fx.validator.err = errors.New("file is empty or truncated")
	p := fx.pipeline()

	_, err := p.Run(context.Background(), classifiedItem("/audio/broken.mp3"))
	if err == nil || !strings.Contains(err.Error(), "empty or truncated") {
		t.Fatalf("expected the validation error, got %v", err)
	}
	if len(fx.transcriber.paths) != 0 {
		t.Error("invalid files must not reach the transcriber")
	}
}

func TestPipelineRemoteDownloads(t *testing.T) {
	fx := newFixture(t)
	p := fx.pipeline()

	raw := "https://example.com/podcast/ep42.mp3"
	item := namedItem(raw, raw) // default name echoes the URL
	outcome, err := p.Run(context.Background(), item)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fx.acquirer.fetched) != 1 || fx.acquirer.fetched[0] != raw {
		t.Fatalf("Fetch calls = %v", fx.acquirer.fetched)
	}
	if fx.acquirer.names[0] != "" {
		t.Errorf("an echoed URL name should not be forced on the acquirer, got %q", fx.acquirer.names[0])
	}
	if got := fx.cache.stored[raw]; got != fx.acquirer.path {
		t.Errorf("download should be cached under the source URL, got %q", got)
	}
	if outcome.LocalPath != fx.acquirer.path {
		t.Errorf("LocalPath = %q", outcome.LocalPath)
	}
	if len(fx.validator.paths) != 1 || fx.validator.paths[0] != fx.acquirer.path {
		t.Errorf("validator saw %v", fx.validator.paths)
	}
}

func TestPipelineRemoteCacheHit(t *testing.T) {
	fx := newFixture(t)
	raw := "https://example.com/podcast/ep42.mp3"
	fx.cache.entries[raw] = fx.acquirer.path
	p := fx.pipeline()

	_, err := p.Run(context.Background(), classifiedItem(raw))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fx.acquirer.fetched) != 0 {
		t.Error("a cache hit must skip the download")
	}
	if len(fx.transcriber.paths) != 1 || fx.transcriber.paths[0] != fx.acquirer.path {
		t.Errorf("transcriber saw %v", fx.transcriber.paths)
	}
}

func TestPipelineRemoteKeepsCustomName(t *testing.T) {
	fx := newFixture(t)
	p := fx.pipeline()

	item := namedItem("https://example.com/a.mp3", "Weekly Sync")
	if _, err := p.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fx.acquirer.names[0] != "Weekly Sync" {
		t.Errorf("acquirer should receive the custom name, got %q", fx.acquirer.names[0])
	}
	if fx.sink.names[0] != "Weekly Sync" {
		t.Errorf("sink should receive the custom name, got %q", fx.sink.names[0])
	}
}

func TestPipelineRemoteSourceResolves(t *testing.T) {
	fx := newFixture(t)
	p := fx.pipeline()

	outcome, err := p.Run(context.Background(), namedItem(watchURL, watchURL))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fx.resolver.calls) != 1 || fx.resolver.calls[0] != watchURL {
		t.Fatalf("resolver calls = %v", fx.resolver.calls)
	}
	if fx.resolver.qualities[0] != "high" {
		t.Errorf("quality = %q", fx.resolver.qualities[0])
	}

	// The download hits the extracted stream, not the page URL
	if len(fx.acquirer.chunked) != 1 || fx.acquirer.chunked[0] != fx.resolver.resolved.StreamURL {
		t.Fatalf("FetchChunked calls = %v", fx.acquirer.chunked)
	}
	if len(fx.acquirer.fetched) != 0 {
		t.Error("video sources must use the chunked path")
	}
	if fx.acquirer.names[0] != "Talk About Nothing" {
		t.Errorf("download name = %q", fx.acquirer.names[0])
	}

	// Cached under the stable page URL so a later submit can match
	if got := fx.cache.stored[watchURL]; got != fx.acquirer.path {
		t.Errorf("cache key should be the page URL, stored = %v", fx.cache.stored)
	}
	if _, ok := fx.cache.stored[fx.resolver.resolved.StreamURL]; ok {
		t.Error("volatile stream URLs must not be cache keys")
	}

	if outcome.Name != "Talk About Nothing" {
		t.Errorf("outcome name = %q", outcome.Name)
	}
	if fx.sink.names[0] != "Talk About Nothing" {
		t.Errorf("sink name = %q", fx.sink.names[0])
	}
}

func TestPipelineRemoteSourceCacheHit(t *testing.T) {
	fx := newFixture(t)
	fx.cache.entries[watchURL] = fx.acquirer.path
	p := fx.pipeline()

	outcome, err := p.Run(context.Background(), namedItem(watchURL, watchURL))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fx.acquirer.chunked) != 0 {
		t.Error("a cache hit must skip the download")
	}
	// Resolution still runs so the item picks up its title
	if outcome.Name != "Talk About Nothing" {
		t.Errorf("outcome name = %q", outcome.Name)
	}
}

func TestPipelineRemoteSourceResolveFailure(t *testing.T) {
	fx := newFixture(t)
	fx.resolver.resolved = nil
	fx.resolver.err = errors.New("failed to fetch video metadata")
	p := fx.pipeline()

	_, err := p.Run(context.Background(), classifiedItem(watchURL))
	if err == nil || !strings.Contains(err.Error(), "metadata") {
		t.Fatalf("expected the resolve error, got %v", err)
	}
	if len(fx.acquirer.chunked)+len(fx.acquirer.fetched) != 0 {
		t.Error("nothing should be downloaded when resolution fails")
	}
}

func TestPipelineAutoDeleteRemovesDownload(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.Download.AutoDelete = true
	p := fx.pipeline()

	raw := "https://example.com/a.mp3"
	outcome, err := p.Run(context.Background(), classifiedItem(raw))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, statErr := os.Stat(fx.acquirer.path); !os.IsNotExist(statErr) {
		t.Error("downloaded file should be deleted after transcription")
	}
	if len(fx.cache.stored) != 0 {
		t.Error("auto-deleted downloads must not be cached")
	}
	if outcome.LocalPath != "" {
		t.Errorf("LocalPath should be cleared, got %q", outcome.LocalPath)
	}
	if outcome.Text != "hello world" {
		t.Errorf("Text = %q", outcome.Text)
	}
}

func TestPipelineAutoDeleteSparesLocalFiles(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.Download.AutoDelete = true
	p := fx.pipeline()

	local := filepath.Join(t.TempDir(), "keep-me.mp3")
	if err := os.WriteFile(local, []byte("precious"), 0644); err != nil {
		t.Fatalf("failed to write local file: %v", err)
	}

	if _, err := p.Run(context.Background(), classifiedItem(local)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(local); err != nil {
		t.Errorf("local source files must never be deleted: %v", err)
	}
}

func TestPipelineDeliveryFailureKeepsTranscript(t *testing.T) {
	fx := newFixture(t)
	fx.sink.err = errors.New("clipboard tool missing")
	p := fx.pipeline()

	outcome, err := p.Run(context.Background(), classifiedItem("/audio/a.mp3"))
	if err == nil || !strings.Contains(err.Error(), "failed to deliver transcript") {
		t.Fatalf("expected a delivery error, got %v", err)
	}
	if outcome == nil || outcome.Text != "hello world" {
		t.Fatalf("transcript must survive a delivery failure, outcome = %+v", outcome)
	}
}

func TestPipelineProgressOnlyWhileDownloading(t *testing.T) {
	fx := newFixture(t)
	fx.acquirer.progress = acquire.Progress{Fraction: 1, TotalBytes: 100, DownloadedBytes: 100}
	p := fx.pipeline()

	// Idle: the acquirer's last finished transfer must not leak through
	if got := p.Progress(); got != 0 {
		t.Errorf("idle Progress = %v, want 0", got)
	}

	p.downloading.Store(true)
	if got := p.Progress(); got != 1 {
		t.Errorf("in-flight Progress = %v, want 1", got)
	}
}
