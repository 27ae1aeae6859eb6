package acquire

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"
)

// chunkDescriptor is one byte range of a chunked download.
type chunkDescriptor struct {
	index int
	start int64
	end   int64 // inclusive
}

// chunkPayload carries the fetched bytes for one range. Payloads live only
// for the duration of a single download.
type chunkPayload struct {
	index int
	data  []byte
}

// FetchChunked downloads url as parallel byte-range chunks and assembles
// them in index order. Preferred for hosts that throttle a single
// connection, like the streaming origins behind video sites.
func (a *Acquirer) FetchChunked(ctx context.Context, rawURL, preferredName string) (string, error) {
	if err := checkScheme(rawURL); err != nil {
		return "", err
	}

	if !a.inFlight.CompareAndSwap(false, true) {
		return "", ErrAcquisitionInProgress
	}
	defer a.inFlight.Store(false)

	a.resetProgress()

	length, err := a.probeLength(ctx, rawURL)
	if err != nil {
		return "", err
	}
	a.total.Store(length)

	chunks := partition(length, a.chunkSize)
	a.log.Debug("chunked fetch of %s: %d bytes in %d chunks", rawURL, length, len(chunks))

	results := make(chan chunkPayload, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, a.concurrency)

	for _, desc := range chunks {
		d := desc
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}

			data, err := a.fetchRange(gctx, rawURL, d)
			if err != nil {
				return err
			}

			a.downloaded.Add(int64(len(data)))
			results <- chunkPayload{index: d.index, data: data}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.resetProgress()
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	close(results)

	// Payloads arrive in completion order; assembly re-orders by index.
	payloads := make([]chunkPayload, 0, len(chunks))
	for p := range results {
		payloads = append(payloads, p)
	}

	dest, err := a.uniqueDestination(fallbackName(preferredName, rawURL))
	if err != nil {
		return "", err
	}

	if err := assemble(payloads, dest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssemblyFailed, err)
	}

	if err := a.checkResult(ctx, dest); err != nil {
		return "", err
	}

	a.markComplete(length)
	return dest, nil
}

// probeLength asks the server for the total content length.
func (a *Acquirer) probeLength(ctx context.Context, rawURL string) (int64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAcquisitionFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: length probe: %v", ErrAcquisitionFailed, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return 0, fmt.Errorf("%w: length probe returned status %d", ErrAcquisitionFailed, resp.StatusCode)
	}

	if resp.ContentLength <= 0 {
		return 0, fmt.Errorf("%w: content length unavailable", ErrAcquisitionFailed)
	}

	return resp.ContentLength, nil
}

// fetchRange downloads one chunk and verifies the server honored the range.
func (a *Acquirer) fetchRange(ctx context.Context, rawURL string, d chunkDescriptor) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, chunkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrAcquisitionFailed, d.index, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", d.start, d.end))

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrAcquisitionFailed, d.index, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("%w: chunk %d: server returned status %d", ErrAcquisitionFailed, d.index, resp.StatusCode)
	}

	want := d.end - d.start + 1

	data, err := io.ReadAll(io.LimitReader(resp.Body, want+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrAcquisitionFailed, d.index, err)
	}

	// A server that ignores Range sends the full body with status 200.
	// Concatenating those would corrupt the output, so the byte count
	// must match the requested range exactly.
	if int64(len(data)) != want {
		return nil, fmt.Errorf("%w: chunk %d: server returned %d bytes for a %d byte range",
			ErrAcquisitionFailed, d.index, len(data), want)
	}

	return data, nil
}

// partition splits [0,length) into fixed-size ranges, the final one
// truncated to the remainder.
func partition(length, chunkSize int64) []chunkDescriptor {
	var chunks []chunkDescriptor
	for start := int64(0); start < length; start += chunkSize {
		end := start + chunkSize - 1
		if end >= length {
			end = length - 1
		}
		chunks = append(chunks, chunkDescriptor{index: len(chunks), start: start, end: end})
	}
	return chunks
}

// assemble writes payloads to dest sorted by chunk index. Fetch completion
// order never influences the output bytes.
func assemble(payloads []chunkPayload, dest string) error {
	sort.Slice(payloads, func(i, j int) bool {
		return payloads[i].index < payloads[j].index
	})

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	w := bufio.NewWriterSize(out, 4*1024*1024)

	for _, p := range payloads {
		if _, err := w.Write(p.data); err != nil {
			out.Close()
			os.Remove(dest)
			return err
		}
	}

	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}

	return out.Close()
}
