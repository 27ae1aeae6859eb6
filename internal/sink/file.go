package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scribeq/scribeq/internal/acquire"
	"github.com/scribeq/scribeq/internal/infra/logger"
)

// FileSink writes transcripts as .txt files into a configured directory.
type FileSink struct {
	dir string
	log *logger.Logger
}

func NewFileSink(dir string, log *logger.Logger) (*FileSink, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &FileSink{dir: dir, log: log}, nil
}

func (s *FileSink) Write(ctx context.Context, name, text string) error {
	base := acquire.SanitizeFileName(name)
	base = strings.TrimSuffix(base, filepath.Ext(base)) + ".txt"

	path, err := acquire.UniquePath(s.dir, base)
	if err != nil {
		return fmt.Errorf("failed to pick output name: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}

	s.log.Info("wrote transcript to %s", path)
	return nil
}
