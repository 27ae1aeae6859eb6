package platform

import (
	"fmt"
	"os/exec"
)

// toolPurpose maps external binaries to the feature that needs them.
var toolPurpose = map[string]string{
	"ffprobe": "audio validation",
	"ffmpeg":  "segment clipping",
}

// ClipboardCandidates are tried in order when no clipboard command is configured.
var ClipboardCandidates = [][]string{
	{"wl-copy"},
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--input", "--clipboard"},
	{"pbcopy"},
}

// CheckTools reports a warning for every external tool missing from PATH.
// Nothing is fatal at startup; a missing tool surfaces as an error when a
// queue item first needs it.
func CheckTools(extra ...string) []string {
	var warnings []string

	for bin, purpose := range toolPurpose {
		if _, err := exec.LookPath(bin); err != nil {
			warnings = append(warnings, fmt.Sprintf("'%s' not found in PATH, %s will fail", bin, purpose))
		}
	}

	for _, bin := range extra {
		if bin == "" {
			continue
		}
		if _, err := exec.LookPath(bin); err != nil {
			warnings = append(warnings, fmt.Sprintf("'%s' not found in PATH", bin))
		}
	}

	return warnings
}

// FindClipboard returns the first available clipboard writer command.
func FindClipboard() ([]string, error) {
	for _, cand := range ClipboardCandidates {
		if path, err := exec.LookPath(cand[0]); err == nil {
			return append([]string{path}, cand[1:]...), nil
		}
	}
	return nil, fmt.Errorf("no clipboard tool found in PATH (tried wl-copy, xclip, xsel, pbcopy)")
}
