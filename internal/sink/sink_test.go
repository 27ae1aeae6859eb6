package sink_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scribeq/scribeq/internal/sink"
)

type recordingSink struct {
	calls int
	name  string
	text  string
	err   error
}

func (r *recordingSink) Write(ctx context.Context, name, text string) error {
	r.calls++
	r.name, r.text = name, text
	return r.err
}

func TestRouterModes(t *testing.T) {
	tests := []struct {
		mode      string
		clipboard int
		file      int
	}{
		{sink.ModeClipboard, 1, 0},
		{sink.ModeFile, 0, 1},
		{sink.ModeBoth, 1, 1},
	}

	for _, tt := range tests {
		clip := &recordingSink{}
		file := &recordingSink{}
		r := sink.NewRouter(tt.mode, clip, file)

		if err := r.Write(context.Background(), "talk", "text"); err != nil {
			t.Errorf("mode %s: expected no error, got %v", tt.mode, err)
		}
		if clip.calls != tt.clipboard || file.calls != tt.file {
			t.Errorf("mode %s: expected clipboard=%d file=%d, got %d/%d",
				tt.mode, tt.clipboard, tt.file, clip.calls, file.calls)
		}
	}
}

func TestRouterBothContinuesPastFailure(t *testing.T) {
	clip := &recordingSink{err: errors.New("no display")}
	file := &recordingSink{}
	r := sink.NewRouter(sink.ModeBoth, clip, file)

	err := r.Write(context.Background(), "talk", "text")
	if err == nil {
		t.Fatal("Expected clipboard error to surface")
	}
	if file.calls != 1 {
		t.Errorf("Expected file sink to still run, got %d calls", file.calls)
	}
}

func TestFileSinkWrites(t *testing.T) {
	dir := t.TempDir()
	s, err := sink.NewFileSink(dir, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := s.Write(context.Background(), `ep.1: "what/now?".m4a`, "the words"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected one output file, got %d", len(entries))
	}

	name := entries[0].Name()
	if !strings.HasSuffix(name, ".txt") {
		t.Errorf("Expected .txt output, got %q", name)
	}
	if strings.ContainsAny(name, `\/:*?"<>|`) {
		t.Errorf("Expected sanitized name, got %q", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if string(data) != "the words" {
		t.Errorf("Expected transcript content, got %q", data)
	}
}

func TestFileSinkUniqueNames(t *testing.T) {
	dir := t.TempDir()
	s, err := sink.NewFileSink(dir, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.Write(context.Background(), "talk.m4a", "text"); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	for _, want := range []string{"talk.txt", "talk-1.txt"} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("Expected %s to exist: %v", want, err)
		}
	}
}

func TestClipboardCommand(t *testing.T) {
	dir := t.TempDir()
	capture := filepath.Join(dir, "captured.txt")
	script := filepath.Join(dir, "fakeclip")
	body := fmt.Sprintf("#!/bin/sh\ncat > %q\n", capture)
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	c, err := sink.NewClipboard(script, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := c.Write(context.Background(), "talk", "copied text"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	data, err := os.ReadFile(capture)
	if err != nil {
		t.Fatalf("failed to read capture: %v", err)
	}
	if string(data) != "copied text" {
		t.Errorf("Expected piped stdin, got %q", data)
	}
}

func TestClipboardCommandFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fakeclip")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'cannot open display' >&2\nexit 1\n"), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	c, err := sink.NewClipboard(script, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	err = c.Write(context.Background(), "talk", "text")
	if err == nil {
		t.Fatal("Expected error from failing command")
	}
	if !strings.Contains(err.Error(), "cannot open display") {
		t.Errorf("Expected stderr in error, got %v", err)
	}
}

func TestClipboardMissingCommand(t *testing.T) {
	if _, err := sink.NewClipboard(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatal("Expected error for missing clipboard command")
	}
}
