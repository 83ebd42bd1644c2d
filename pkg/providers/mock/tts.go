package mock

import (
	"context"
	"os"
	"sync"

	"github.com/harunnryd/voxcall/pkg/tts"
)

// Synthesizer is a tts.Synthesizer fake that writes an empty wav artifact.
type Synthesizer struct {
	cfg TTSConfig

	mu       sync.Mutex
	requests []tts.Request
	warmed   bool
}

type TTSConfig struct {
	Artifacts tts.ArtifactStore
	Err       error
	WriteFile bool
}

func NewSynthesizer(cfg TTSConfig) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Warm(ctx context.Context) error {
	s.mu.Lock()
	s.warmed = true
	s.mu.Unlock()
	return nil
}

func (s *Synthesizer) Warmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warmed
}

func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (tts.Artifact, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.cfg.Err != nil {
		return tts.Artifact{}, s.cfg.Err
	}
	artifact := s.cfg.Artifacts.NewArtifact("mock")
	if s.cfg.WriteFile {
		if err := os.WriteFile(artifact.LocalPath, []byte("RIFF"), 0o644); err != nil {
			return tts.Artifact{}, err
		}
	}
	return artifact, nil
}

// Requests returns the synthesis requests seen so far.
func (s *Synthesizer) Requests() []tts.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tts.Request, len(s.requests))
	copy(out, s.requests)
	return out
}
