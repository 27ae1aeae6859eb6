package acquire

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/scribeq/scribeq/internal/infra/logger"
)

const (
	DefaultChunkSize   = 2 * 1024 * 1024
	DefaultConcurrency = 4

	connectTimeout  = 30 * time.Second
	idleTimeout     = 90 * time.Second
	keepAlivePeriod = 30 * time.Second
	chunkTimeout    = 2 * time.Minute

	userAgent = "scribeq/1.0"
)

// ValidateFunc checks a finished download before the acquirer reports success.
type ValidateFunc func(ctx context.Context, path string) error

// Progress is a snapshot of the current transfer.
type Progress struct {
	TotalBytes      int64   `json:"total_bytes"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	Fraction        float64 `json:"fraction"`
}

// Acquirer downloads remote resources into the managed downloads
// directory, either as one streamed transfer or as parallel byte-range
// chunks. It is single-flight: one transfer at a time per instance,
// matching the queue's one-item-at-a-time discipline.
type Acquirer struct {
	client      *http.Client
	dir         string
	chunkSize   int64
	concurrency int
	validate    ValidateFunc
	log         *logger.Logger

	inFlight   atomic.Bool
	total      atomic.Int64
	downloaded atomic.Int64
}

func New(dir string, chunkSize int64, concurrency int, validate ValidateFunc, log *logger.Logger) *Acquirer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Acquirer{
		client:      newHTTPClient(),
		dir:         dir,
		chunkSize:   chunkSize,
		concurrency: concurrency,
		validate:    validate,
		log:         log,
	}
}

func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: keepAlivePeriod,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
		MaxConnsPerHost:       16,
	}

	return &http.Client{Transport: transport}
}

// Fetch downloads url in one streamed request and returns the stored path.
func (a *Acquirer) Fetch(ctx context.Context, rawURL, preferredName string) (string, error) {
	if err := checkScheme(rawURL); err != nil {
		return "", err
	}

	if !a.inFlight.CompareAndSwap(false, true) {
		return "", ErrAcquisitionInProgress
	}
	defer a.inFlight.Store(false)

	a.resetProgress()
	a.log.Debug("fetching %s", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAcquisitionFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrAcquisitionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: server returned status %d", ErrAcquisitionFailed, resp.StatusCode)
	}

	if resp.ContentLength > 0 {
		a.total.Store(resp.ContentLength)
	}

	tmp, err := os.CreateTemp("", "scribeq-dl-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAcquisitionFailed, err)
	}

	n, err := io.Copy(tmp, io.TeeReader(resp.Body, countingWriter{&a.downloaded}))
	tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		a.resetProgress()
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrAcquisitionFailed, err)
	}

	dest, err := a.uniqueDestination(deriveName(preferredName, resp, rawURL))
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	if err := moveFile(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", ErrAssemblyFailed, err)
	}

	if err := a.checkResult(ctx, dest); err != nil {
		return "", err
	}

	a.markComplete(n)
	a.log.Debug("stored %s (%d bytes)", dest, n)
	return dest, nil
}

// Progress reports the state of the transfer currently in flight (or the
// last finished one).
func (a *Acquirer) Progress() Progress {
	total := a.total.Load()
	done := a.downloaded.Load()

	p := Progress{TotalBytes: total, DownloadedBytes: done}
	if total > 0 {
		p.Fraction = float64(done) / float64(total)
		if p.Fraction > 1 {
			p.Fraction = 1
		}
	}
	return p
}

// checkResult validates the finished file and deletes it on failure, so a
// rejected download never lingers in the downloads dir.
func (a *Acquirer) checkResult(ctx context.Context, path string) error {
	if a.validate == nil {
		return nil
	}
	if err := a.validate(ctx, path); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

func (a *Acquirer) resetProgress() {
	a.total.Store(0)
	a.downloaded.Store(0)
}

func (a *Acquirer) markComplete(n int64) {
	if a.total.Load() <= 0 {
		a.total.Store(n)
	}
	a.downloaded.Store(a.total.Load())
}

func checkScheme(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidSource, rawURL)
	}
	return nil
}

type countingWriter struct {
	n *atomic.Int64
}

func (w countingWriter) Write(p []byte) (int, error) {
	w.n.Add(int64(len(p)))
	return len(p), nil
}
