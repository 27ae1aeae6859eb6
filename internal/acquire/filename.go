package acquire

import (
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxNameLen      = 120
	maxNameAttempts = 1000
)

var badChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SanitizeFileName strips OS-illegal characters, caps the length and falls
// back to a generic name when nothing usable remains.
func SanitizeFileName(name string) string {
	res := html.UnescapeString(name)
	res = badChars.ReplaceAllString(res, "_")
	res = strings.TrimSpace(res)

	if utf8.RuneCountInString(res) > maxNameLen {
		res = string([]rune(res)[:maxNameLen])
	}

	if res == "" || res == "." || res == ".." {
		res = "audio"
	}

	return res
}

// deriveName picks a filename for a single-shot download: the caller's
// preferred title, then Content-Disposition, then the URL path base, then
// a timestamp.
func deriveName(preferred string, resp *http.Response, rawURL string) string {
	if strings.TrimSpace(preferred) != "" {
		return preferred
	}

	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name, ok := params["filename"]; ok && name != "" {
				return name
			}
		}
	}

	return fallbackName("", rawURL)
}

// fallbackName derives a name from the URL path, else from the clock.
func fallbackName(preferred, rawURL string) string {
	if strings.TrimSpace(preferred) != "" {
		return preferred
	}

	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}

	return "download-" + time.Now().Format("20060102-150405")
}

// UniquePath returns a collision-free path for name inside dir, appending
// a numeric suffix when needed. Bounded so a pathological directory cannot
// loop forever.
func UniquePath(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssemblyFailed, err)
	}

	name = SanitizeFileName(name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
		if i >= maxNameAttempts {
			return "", fmt.Errorf("%w: no free name for %q after %d attempts", ErrAssemblyFailed, name, maxNameAttempts)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, ext))
	}
}

func (a *Acquirer) uniqueDestination(name string) (string, error) {
	return UniquePath(a.dir, name)
}

// moveFile moves a file, falling back to copy for cross-device renames.
func moveFile(source, dest string) error {
	if err := os.Rename(source, dest); err == nil {
		return nil
	}
	return moveCrossDevice(source, dest)
}

// moveCrossDevice copies through a hidden temp file next to the target so
// a crash never leaves a half-written file under the final name.
func moveCrossDevice(sourcePath, destPath string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := filepath.Join(filepath.Dir(destPath), "."+filepath.Base(destPath)+".tmp")

	dst, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return err
	}

	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(tmp)
		return err
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Remove(sourcePath)
}
