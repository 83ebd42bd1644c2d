// Package voices manages named voice profiles: a reference recording per
// profile, stored on disk, plus optional provider-side voice ids. Profiles
// are resolved read-only during calls; mutation happens through the admin
// API only.
package voices

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when no profile exists for a name.
var ErrNotFound = errors.New("voice not found")

const (
	referenceFileName = "reference.wav"
	profileFileName   = "profile.json"
)

var safeNameRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SanitizeName reduces a requested profile name to a filesystem-safe slug.
func SanitizeName(name string) string {
	return strings.Trim(safeNameRe.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
}

// Profile is one named cloned voice.
type Profile struct {
	Name            string    `json:"name"`
	ReferenceWAV    string    `json:"reference_wav"`
	ProviderVoiceID string    `json:"provider_voice_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Registry is the on-disk profile store with an in-memory index.
type Registry struct {
	dir string

	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewRegistry loads existing profiles from dir.
func NewRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	r := &Registry{dir: dir, profiles: make(map[string]Profile)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		ref := filepath.Join(dir, name, referenceFileName)
		if _, err := os.Stat(ref); err != nil {
			continue
		}
		p := Profile{Name: name, ReferenceWAV: ref}
		if raw, err := os.ReadFile(filepath.Join(dir, name, profileFileName)); err == nil {
			_ = json.Unmarshal(raw, &p)
			p.Name = name
			p.ReferenceWAV = ref
		}
		if p.CreatedAt.IsZero() {
			if info, err := e.Info(); err == nil {
				p.CreatedAt = info.ModTime()
			}
		}
		r.profiles[name] = p
	}
	return r, nil
}

// Upsert stores a reference recording under a sanitized name.
func (r *Registry) Upsert(name string, sample []byte, providerVoiceID string) (Profile, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return Profile{}, errors.New("invalid voice name")
	}
	voiceDir := filepath.Join(r.dir, clean)
	if err := os.MkdirAll(voiceDir, 0o755); err != nil {
		return Profile{}, err
	}
	ref := filepath.Join(voiceDir, referenceFileName)
	if err := os.WriteFile(ref, sample, 0o644); err != nil {
		return Profile{}, err
	}
	p := Profile{
		Name:            clean,
		ReferenceWAV:    ref,
		ProviderVoiceID: providerVoiceID,
		CreatedAt:       time.Now(),
	}
	if raw, err := json.MarshalIndent(p, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(voiceDir, profileFileName), raw, 0o644)
	}
	r.mu.Lock()
	r.profiles[clean] = p
	r.mu.Unlock()
	return p, nil
}

// Get resolves a profile by name.
func (r *Registry) Get(name string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[SanitizeName(name)]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

// List returns all profiles, newest first.
func (r *Registry) List() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes the profile and its files.
func (r *Registry) Delete(name string) error {
	clean := SanitizeName(name)
	r.mu.Lock()
	_, ok := r.profiles[clean]
	delete(r.profiles, clean)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return os.RemoveAll(filepath.Join(r.dir, clean))
}
