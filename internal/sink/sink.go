// Package sink persists finished transcripts to the configured outputs.
package sink

import (
	"context"
	"errors"
)

// Output modes accepted by the router.
const (
	ModeClipboard = "clipboard"
	ModeFile      = "file"
	ModeBoth      = "both"
)

// Sink writes a finished transcript under a display name.
type Sink interface {
	Write(ctx context.Context, name, text string) error
}

// Router fans a transcript out to the sinks enabled by the output mode.
type Router struct {
	mode      string
	clipboard Sink
	file      Sink
}

func NewRouter(mode string, clipboard, file Sink) *Router {
	return &Router{mode: mode, clipboard: clipboard, file: file}
}

// Write delivers to every enabled sink. A failing sink does not stop
// the others; errors are joined.
func (r *Router) Write(ctx context.Context, name, text string) error {
	var clipErr, fileErr error
	if r.mode == ModeClipboard || r.mode == ModeBoth {
		clipErr = r.clipboard.Write(ctx, name, text)
	}
	if r.mode == ModeFile || r.mode == ModeBoth {
		fileErr = r.file.Write(ctx, name, text)
	}
	return errors.Join(clipErr, fileErr)
}
