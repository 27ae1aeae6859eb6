package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scribeq/scribeq/internal/domain"
	"github.com/scribeq/scribeq/internal/infra/logger"
	"github.com/scribeq/scribeq/internal/media"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAI sends audio to an OpenAI-compatible transcription endpoint.
// Any server speaking the /audio/transcriptions protocol works, which
// covers self-hosted whisper servers as well.
type OpenAI struct {
	canceller

	baseURL  string
	apiKey   string
	model    string
	language string
	client   *http.Client
	prober   media.Prober
	clipper  media.Clipper
	log      *logger.Logger
}

func NewOpenAI(baseURL, apiKey, model, language string, prober media.Prober, clipper media.Clipper, log *logger.Logger) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOpenAIBase
	}
	if model == "" {
		model = "whisper-1"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OpenAI{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		model:    model,
		language: language,
		client:   &http.Client{Timeout: 10 * time.Minute},
		prober:   prober,
		clipper:  clipper,
		log:      log,
	}
}

func (o *OpenAI) Transcribe(ctx context.Context, path string) (string, error) {
	out, err := o.request(ctx, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

func (o *OpenAI) TranscribeWithTimestamps(ctx context.Context, path string) ([]domain.Segment, error) {
	out, err := o.request(ctx, path)
	if err != nil {
		return nil, err
	}

	segments := make([]domain.Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		segments = append(segments, domain.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	return segments, nil
}

func (o *OpenAI) TranscribeSegment(ctx context.Context, path string, start, end float64) (string, error) {
	return transcribeClip(ctx, o.prober, o.clipper, path, start, end, o.Transcribe)
}

// openaiResponse is the verbose_json shape of /audio/transcriptions.
type openaiResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (o *OpenAI) request(ctx context.Context, path string) (*openaiResponse, error) {
	ctx, done := o.begin(ctx)
	defer done()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to buffer audio file: %w", err)
	}
	mw.WriteField("model", o.model)
	mw.WriteField("response_format", "verbose_json")
	if o.language != "" {
		mw.WriteField("language", o.language)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	o.log.Debug("posting %s to %s", filepath.Base(path), o.baseURL)

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("transcription service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode transcription response: %w", err)
	}
	return &out, nil
}
