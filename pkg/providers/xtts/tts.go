// Package xtts drives a self-hosted XTTS synthesis server. The server owns
// the model; this client uploads the reference voice recording with each
// request and stores the returned wav as a provider-fetchable artifact.
//
// Expected endpoints: POST {base}/synthesize (multipart: text, language,
// speaker_wav) returning audio/wav, and GET {base}/health for readiness.
package xtts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harunnryd/voxcall/pkg/errorsx"
	"github.com/harunnryd/voxcall/pkg/resilience"
	"github.com/harunnryd/voxcall/pkg/tts"
)

type Config struct {
	BaseURL   string
	Artifacts tts.ArtifactStore
	Timeout   time.Duration
}

type Synthesizer struct {
	cfg    Config
	client *http.Client

	warmOnce sync.Once
	warmErr  error
}

func New(cfg Config) *Synthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Synthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *Synthesizer) Name() string { return "xtts" }

// Warm checks server readiness once. The model itself lives in the server
// process, so a cold server answers slowly here instead of during a call.
func (s *Synthesizer) Warm(ctx context.Context) error {
	s.warmOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/health", nil)
		if err != nil {
			s.warmErr = err
			return
		}
		resp, err := s.client.Do(req)
		if err != nil {
			s.warmErr = errorsx.Wrap(err, errorsx.ReasonTTSConnect)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			s.warmErr = errorsx.Wrap(fmt.Errorf("xtts health status %d", resp.StatusCode), errorsx.ReasonTTSConnect)
		}
	})
	return s.warmErr
}

func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (tts.Artifact, error) {
	if req.Text == "" {
		return tts.Artifact{}, errors.New("empty text")
	}
	if req.ReferenceWAV == "" {
		return tts.Artifact{}, errors.New("missing reference wav")
	}

	body, contentType, err := s.buildForm(req)
	if err != nil {
		return tts.Artifact{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/synthesize", body)
	if err != nil {
		return tts.Artifact{}, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return tts.Artifact{}, errorsx.Wrap(err, errorsx.ReasonTTSConnect)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return tts.Artifact{}, resilience.RateLimitError{Provider: "xtts", Message: resp.Status}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Artifact{}, errorsx.Wrap(fmt.Errorf("xtts status %d: %s", resp.StatusCode, msg), errorsx.ReasonTTSSynthesize)
	}

	artifact := s.cfg.Artifacts.NewArtifact("tts")
	out, err := os.Create(artifact.LocalPath)
	if err != nil {
		return tts.Artifact{}, errorsx.Wrap(err, errorsx.ReasonTTSWrite)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = os.Remove(artifact.LocalPath)
		return tts.Artifact{}, errorsx.Wrap(err, errorsx.ReasonTTSWrite)
	}
	return artifact, nil
}

func (s *Synthesizer) buildForm(req tts.Request) (io.Reader, string, error) {
	ref, err := os.Open(req.ReferenceWAV)
	if err != nil {
		return nil, "", errorsx.Wrap(err, errorsx.ReasonVoiceNotFound)
	}
	defer ref.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("text", req.Text); err != nil {
		return nil, "", err
	}
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	if err := writer.WriteField("language", lang); err != nil {
		return nil, "", err
	}
	part, err := writer.CreateFormFile("speaker_wav", filepath.Base(req.ReferenceWAV))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, ref); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
