package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// YouTubeClient fetches video metadata and stream URLs through the
// public player API. It holds no state: every Lookup is a fresh request,
// since stream URLs carry signed tokens that expire.
type YouTubeClient struct {
	client youtube.Client
}

func NewYouTubeClient() *YouTubeClient {
	return &YouTubeClient{}
}

func (y *YouTubeClient) Lookup(ctx context.Context, id string) (*Metadata, error) {
	video, err := y.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, err
	}

	meta := &Metadata{
		ID:         video.ID,
		Title:      video.Title,
		Duration:   video.Duration.Seconds(),
		Thumbnail:  bestThumbnail(video.Thumbnails),
		descriptor: video,
	}
	for _, f := range video.Formats {
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		meta.Streams = append(meta.Streams, Stream{
			Itag:     f.ItagNo,
			MimeType: f.MimeType,
			Bitrate:  f.Bitrate,
		})
	}
	return meta, nil
}

// StreamURL extracts the downloadable URL for one of meta's streams.
// meta must come from this client's Lookup, which is what carries the
// video descriptor here.
func (y *YouTubeClient) StreamURL(ctx context.Context, meta *Metadata, itag int) (string, error) {
	video, ok := meta.descriptor.(*youtube.Video)
	if !ok {
		return "", fmt.Errorf("metadata for %s is missing its video descriptor", meta.ID)
	}

	for i := range video.Formats {
		if video.Formats[i].ItagNo == itag {
			return y.client.GetStreamURLContext(ctx, video, &video.Formats[i])
		}
	}
	return "", fmt.Errorf("no format with itag %d", itag)
}

// bestThumbnail picks the largest rendition the service offers.
func bestThumbnail(thumbs youtube.Thumbnails) string {
	best := ""
	var width uint
	for _, th := range thumbs {
		if th.URL == "" {
			continue
		}
		if best == "" || th.Width > width {
			best = th.URL
			width = th.Width
		}
	}
	return best
}
