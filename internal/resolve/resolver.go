package resolve

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/scribeq/scribeq/internal/infra/logger"
)

// targetBitrate is the preferred rate for every quality tier except
// "high", in bits per second.
const targetBitrate = 128000

// remoteHosts is the fixed set of hostnames treated as resolvable video
// sources rather than direct file URLs.
var remoteHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
}

// IsRemoteSource reports whether a URL belongs to a host that needs
// stream resolution instead of a direct download.
func IsRemoteSource(u *url.URL) bool {
	if u == nil {
		return false
	}
	return remoteHosts[strings.ToLower(u.Hostname())]
}

// ExtractVideoID pulls the video identifier out of a watch URL. Short
// links carry the id as the last path segment, canonical URLs carry it
// in the "v" query parameter.
func ExtractVideoID(u *url.URL) (string, error) {
	if strings.EqualFold(u.Hostname(), "youtu.be") {
		id := path.Base(strings.TrimSuffix(u.Path, "/"))
		if id == "" || id == "." || id == "/" {
			return "", fmt.Errorf("%w: short link %q has no path segment", ErrIdentifierExtraction, u.String())
		}
		return id, nil
	}
	if id := u.Query().Get("v"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: no v parameter in %q", ErrIdentifierExtraction, u.String())
}

// Stream is one audio-only rendition offered by the hosting service.
type Stream struct {
	Itag     int
	MimeType string
	Bitrate  int // bits per second
}

// Metadata describes a remote video and the audio renditions available
// for it. A Metadata value is fetched fresh for every resolution and
// discarded with it; stream URLs carry expiring tokens, so nothing here
// is worth keeping around.
type Metadata struct {
	ID        string
	Title     string
	Duration  float64 // seconds
	Thumbnail string
	Streams   []Stream

	// descriptor carries the client's underlying video handle from
	// Lookup to StreamURL, saving a second metadata request within the
	// same resolution.
	descriptor any
}

// MetadataClient talks to the hosting service. Lookup returns metadata
// plus stream candidates; StreamURL resolves the downloadable URL for
// one of that metadata's candidates. Implementations must not cache
// across calls: resolved URLs expire.
type MetadataClient interface {
	Lookup(ctx context.Context, id string) (*Metadata, error)
	StreamURL(ctx context.Context, meta *Metadata, itag int) (string, error)
}

// Resolved is everything the downloader needs to fetch a remote source.
type Resolved struct {
	ID        string
	Title     string
	Duration  float64
	Thumbnail string
	StreamURL string
	MimeType  string
}

type Resolver struct {
	client MetadataClient
	log    *logger.Logger
}

func New(client MetadataClient, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{client: client, log: log}
}

// Resolve turns a watch URL into a direct audio stream reference.
// Quality "high" selects the highest bitrate; any other tier selects
// the candidate closest to 128 kbps.
func (r *Resolver) Resolve(ctx context.Context, rawURL, quality string) (*Resolved, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedHost, err)
	}
	if !IsRemoteSource(u) {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedHost, u.Hostname())
	}

	id, err := ExtractVideoID(u)
	if err != nil {
		return nil, err
	}

	meta, err := r.client.Lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrMetadataFetch, id, err)
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		// Metadata is best-effort; keep the id visible so the file is
		// still identifiable.
		title = "youtube-" + id
	}

	pick, err := SelectAudioStream(meta.Streams, quality)
	if err != nil {
		return nil, err
	}

	streamURL, err := r.client.StreamURL(ctx, meta, pick.Itag)
	if err != nil {
		return nil, fmt.Errorf("%w: itag %d: %v", ErrStreamExtraction, pick.Itag, err)
	}

	r.log.Debug("resolved %s: title=%q itag=%d bitrate=%d", id, title, pick.Itag, pick.Bitrate)

	return &Resolved{
		ID:        id,
		Title:     title,
		Duration:  meta.Duration,
		Thumbnail: meta.Thumbnail,
		StreamURL: streamURL,
		MimeType:  pick.MimeType,
	}, nil
}

// SelectAudioStream picks one candidate for the given quality tier.
// "high" takes the maximum bitrate; every other tier takes the bitrate
// closest to targetBitrate.
func SelectAudioStream(streams []Stream, quality string) (*Stream, error) {
	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: no audio-only streams available", ErrStreamExtraction)
	}

	best := 0
	if strings.EqualFold(quality, "high") {
		for i, s := range streams {
			if s.Bitrate > streams[best].Bitrate {
				best = i
			}
		}
	} else {
		for i, s := range streams {
			if bitrateDistance(s.Bitrate) < bitrateDistance(streams[best].Bitrate) {
				best = i
			}
		}
	}
	return &streams[best], nil
}

func bitrateDistance(bitrate int) int {
	d := bitrate - targetBitrate
	if d < 0 {
		return -d
	}
	return d
}

// ValidateTimeRange checks a clip window in seconds against a known
// media duration. A duration of zero or less means the length is
// unknown and only the window shape is checked.
func ValidateTimeRange(start, end, duration float64) error {
	if start < 0 || end <= start {
		return fmt.Errorf("%w: start=%.3f end=%.3f", ErrInvalidTimeRange, start, end)
	}
	if duration > 0 && end > duration {
		return fmt.Errorf("%w: end=%.3f, duration=%.3f", ErrTimeRangeExceedsDuration, end, duration)
	}
	return nil
}
