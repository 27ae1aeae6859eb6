package domain

import (
	"net/url"
	"path/filepath"
	"strings"
)

type SourceKind string

const (
	KindLocal        SourceKind = "local"
	KindRemote       SourceKind = "remote"
	KindRemoteSource SourceKind = "remote_source"
)

// SourceRef is a classified reference to the media behind a queue item.
// Classification happens once at enqueue; everything downstream switches
// on Kind instead of re-deriving it from the raw string.
type SourceRef struct {
	Kind SourceKind `json:"kind"`
	Raw  string     `json:"raw"`
}

// ClassifySource decides which pipeline a submitted reference goes through.
// isRemoteSource reports whether a parsed URL belongs to a special-cased
// video host; the resolver owns that allow-list.
func ClassifySource(raw string, isRemoteSource func(*url.URL) bool) SourceRef {
	ref := strings.TrimSpace(raw)

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if u, err := url.Parse(ref); err == nil {
			if isRemoteSource != nil && isRemoteSource(u) {
				return SourceRef{Kind: KindRemoteSource, Raw: ref}
			}
			return SourceRef{Kind: KindRemote, Raw: ref}
		}
	}

	// Anything that is not an http(s) URL is treated as a filesystem path.
	return SourceRef{Kind: KindLocal, Raw: ref}
}

// DefaultName derives a display name when the caller did not supply one.
func (s SourceRef) DefaultName() string {
	if s.Kind == KindLocal {
		return filepath.Base(s.Raw)
	}
	return s.Raw
}
