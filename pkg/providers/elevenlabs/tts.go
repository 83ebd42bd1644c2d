// Package elevenlabs synthesizes speech through the ElevenLabs streaming
// websocket API. Unlike the self-hosted path there is no per-request voice
// cloning; profiles must carry a pre-cloned provider voice id. Streamed PCM
// chunks are collected into a single wav artifact for the telephony provider
// to fetch.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/voxcall/pkg/errorsx"
	"github.com/harunnryd/voxcall/pkg/resilience"
	"github.com/harunnryd/voxcall/pkg/tts"
)

type Config struct {
	APIKey     string
	ModelID    string
	SampleRate int
	Artifacts  tts.ArtifactStore
	Timeout    time.Duration

	// BaseURL overrides the ElevenLabs endpoint; tests point it at a local
	// websocket server.
	BaseURL string
}

type Synthesizer struct {
	cfg Config
}

func New(cfg Config) *Synthesizer {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "wss://api.elevenlabs.io"
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "elevenlabs" }

// Warm is a no-op; the hosted service has no cold start we can pay down.
func (s *Synthesizer) Warm(ctx context.Context) error { return nil }

func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (tts.Artifact, error) {
	if s.cfg.APIKey == "" {
		return tts.Artifact{}, errors.New("missing elevenlabs api key")
	}
	if req.ProviderVoiceID == "" {
		return tts.Artifact{}, errorsx.Wrap(errors.New("profile has no provider voice id"), errorsx.ReasonVoiceNotFound)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return tts.Artifact{}, errors.New("empty text")
	}

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: s.cfg.Timeout}
	conn, resp, err := dialer.DialContext(ctx, s.streamURL(req.ProviderVoiceID), http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return tts.Artifact{}, resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
		}
		return tts.Artifact{}, errorsx.Wrap(err, errorsx.ReasonTTSConnect)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(deadline)
	_ = conn.SetWriteDeadline(deadline)

	// Init, the full utterance, then the empty-text close signal.
	init := map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.8,
		},
	}
	if !strings.HasSuffix(text, " ") {
		text += " "
	}
	for _, payload := range []map[string]any{init, {"text": text}, {"text": ""}} {
		if err := conn.WriteJSON(payload); err != nil {
			return tts.Artifact{}, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
		}
	}

	pcm, err := collectAudio(conn)
	if err != nil {
		return tts.Artifact{}, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	if len(pcm) == 0 {
		return tts.Artifact{}, errorsx.Wrap(errors.New("no audio received"), errorsx.ReasonTTSSynthesize)
	}

	artifact := s.cfg.Artifacts.NewArtifact("tts")
	if err := writeWAV(artifact.LocalPath, pcm, s.cfg.SampleRate); err != nil {
		return tts.Artifact{}, errorsx.Wrap(err, errorsx.ReasonTTSWrite)
	}
	return artifact, nil
}

func (s *Synthesizer) streamURL(voiceID string) string {
	q := url.Values{}
	if s.cfg.ModelID != "" {
		q.Set("model_id", s.cfg.ModelID)
	}
	q.Set("output_format", "pcm_16000")
	return s.cfg.BaseURL + "/v1/text-to-speech/" + voiceID + "/stream-input?" + q.Encode()
}

type streamMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
}

func collectAudio(conn *websocket.Conn) ([]byte, error) {
	var pcm []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(pcm) > 0 {
				return pcm, nil
			}
			return pcm, err
		}
		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return pcm, errors.New(msg.Error)
		}
		if msg.Audio != "" {
			raw, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return pcm, err
			}
			pcm = append(pcm, raw...)
		}
		if msg.IsFinal {
			return pcm, nil
		}
	}
}

// writeWAV wraps 16-bit mono PCM in a RIFF header.
func writeWAV(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := f.Write(header); err != nil {
		return err
	}
	_, err = f.Write(pcm)
	return err
}
