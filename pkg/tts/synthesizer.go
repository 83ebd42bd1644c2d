package tts

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Request describes one synthesis job. ReferenceWAV conditions the cloned
// voice; ProviderVoiceID selects a pre-cloned provider-side voice instead.
type Request struct {
	Text            string
	ReferenceWAV    string
	ProviderVoiceID string
	Language        string
}

// Artifact is a synthesized audio file plus the URL the telephony provider
// fetches it from. The URL must be absolute and publicly resolvable.
type Artifact struct {
	LocalPath string
	PublicURL string
}

// Synthesizer defines the contract for any TTS vendor implementation.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize produces a playable audio artifact for the request. It must
	// respect ctx's deadline; callers run inside the webhook response window.
	Synthesize(ctx context.Context, req Request) (Artifact, error)
	// Warm prepares the backend (model load). Called once at process start
	// in the background so the first call does not pay the load cost.
	Warm(ctx context.Context) error
}

// ArtifactStore allocates uniquely named artifact files under a directory
// served at a public base URL.
type ArtifactStore struct {
	Dir     string
	BaseURL string
}

// NewArtifact reserves a path and URL for a wav artifact.
func (s ArtifactStore) NewArtifact(stem string) Artifact {
	if stem == "" {
		stem = "tts"
	}
	name := stem + "_" + strings.ReplaceAll(uuid.NewString(), "-", "") + ".wav"
	return Artifact{
		LocalPath: filepath.Join(s.Dir, name),
		PublicURL: strings.TrimRight(s.BaseURL, "/") + "/" + name,
	}
}
