// Package httpapi exposes the provider webhooks and the operator REST API
// over one HTTP server: webhook paths answer markup documents, api paths
// answer JSON, and synthesized audio is served as static files.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/harunnryd/voxcall/pkg/controller"
	"github.com/harunnryd/voxcall/pkg/convo"
	"github.com/harunnryd/voxcall/pkg/errorsx"
	"github.com/harunnryd/voxcall/pkg/store"
	"github.com/harunnryd/voxcall/pkg/tts"
	twiliotransport "github.com/harunnryd/voxcall/pkg/transports/twilio"
	"github.com/harunnryd/voxcall/pkg/twiml"
	"github.com/harunnryd/voxcall/pkg/voices"
)

const maxUploadBytes = 20 << 20

type Config struct {
	Addr       string
	AnswerPath string
	SpeechPath string
	StatusPath string
	StartPath  string
	AudioDir   string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.AnswerPath == "" {
		c.AnswerPath = "/twilio/answer"
	}
	if c.SpeechPath == "" {
		c.SpeechPath = "/twilio/speech"
	}
	if c.StatusPath == "" {
		c.StatusPath = "/twilio/status"
	}
	if c.StartPath == "" {
		c.StartPath = "/twilio/start"
	}
	return c
}

// Server wires the webhook and API handlers around the conversation core.
type Server struct {
	cfg       Config
	ctrl      *controller.Controller
	store     store.Store
	voices    *voices.Registry
	synth     tts.Synthesizer
	validator *twiliotransport.Validator
	log       *slog.Logger

	server *http.Server
}

func New(cfg Config, ctrl *controller.Controller, st store.Store, vr *voices.Registry, synth tts.Synthesizer, validator *twiliotransport.Validator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:       cfg.withDefaults(),
		ctrl:      ctrl,
		store:     st,
		voices:    vr,
		synth:     synth,
		validator: validator,
		log:       log,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+s.cfg.StartPath, s.handleStart)
	mux.HandleFunc("POST "+s.cfg.AnswerPath, s.handleAnswer)
	mux.HandleFunc("POST "+s.cfg.SpeechPath, s.handleSpeech)
	mux.HandleFunc("POST "+s.cfg.StatusPath, s.handleStatus)

	mux.HandleFunc("GET /api/calls", s.handleListCalls)
	mux.HandleFunc("GET /api/calls/{id}", s.handleGetCall)
	mux.HandleFunc("GET /api/calls/{id}/transcript.txt", s.handleTranscript)

	mux.HandleFunc("POST /api/voices", s.handleUploadVoice)
	mux.HandleFunc("GET /api/voices", s.handleListVoices)
	mux.HandleFunc("POST /api/voices/{name}/preview", s.handlePreviewVoice)
	mux.HandleFunc("DELETE /api/voices/{name}", s.handleDeleteVoice)

	mux.HandleFunc("POST /api/tts", s.handleTTS)

	if s.cfg.AudioDir != "" {
		mux.Handle("GET /static/audio/", http.StripPrefix("/static/audio/", http.FileServer(http.Dir(s.cfg.AudioDir))))
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Start serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           s.Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type startRequest struct {
	To      string `json:"to"`
	Voice   string `json:"voice"`
	Message string `json:"message"`
}

type callResponse struct {
	CallID      string `json:"call_id"`
	Destination string `json:"destination"`
	Voice       string `json:"voice,omitempty"`
	Status      string `json:"status"`
	Summary     string `json:"summary,omitempty"`
	ProviderSID string `json:"provider_sid,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toCallResponse(sess convo.Session) callResponse {
	return callResponse{
		CallID:      sess.ID,
		Destination: sess.Destination,
		Voice:       sess.VoiceName,
		Status:      sess.Status.String(),
		Summary:     sess.Summary,
		ProviderSID: sess.ProviderSID,
		CreatedAt:   sess.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   sess.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	sess, err := s.ctrl.Create(r.Context(), req.To, req.Voice, req.Message)
	if err != nil {
		switch {
		case errorsx.HasReason(err, errorsx.ReasonVoiceNotFound):
			writeError(w, http.StatusNotFound, "voice not found")
		case errorsx.HasReason(err, errorsx.ReasonDialCreate):
			writeError(w, http.StatusBadGateway, "dial failed")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, toCallResponse(sess))
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if !s.verifySignature(w, r) {
		return
	}
	sessionID := r.URL.Query().Get("call_id")
	writeTwiML(w, s.ctrl.OnAnswer(r.Context(), sessionID))
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if !s.verifySignature(w, r) {
		return
	}
	sessionID := r.URL.Query().Get("call_id")
	if err := r.ParseForm(); err != nil {
		s.log.Warn("speech_malformed_payload",
			slog.String("session_id", sessionID),
			slog.String("reason_code", string(errorsx.ReasonWebhookMalformedPayload)))
		writeTwiML(w, twiml.Empty())
		return
	}
	text := r.PostFormValue("SpeechResult")
	writeTwiML(w, s.ctrl.OnSpeech(r.Context(), sessionID, text))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.verifySignature(w, r) {
		return
	}
	sessionID := r.URL.Query().Get("call_id")
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := s.ctrl.OnStatus(r.Context(), sessionID, r.PostFormValue("CallStatus")); err != nil {
		s.log.Error("status_update_failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	out := make([]callResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toCallResponse(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, toCallResponse(sess))
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetSession(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	turns, err := s.store.Transcript(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		// A call with no recorded turns reads the same as no call at all.
		writeError(w, http.StatusNotFound, "transcript not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "transcript failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(convo.RenderTranscript(turns)))
}

func (s *Server) handleUploadVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	name := r.FormValue("name")
	if voices.SanitizeName(name) == "" {
		writeError(w, http.StatusBadRequest, "invalid voice name")
		return
	}
	file, _, err := r.FormFile("sample")
	if err != nil {
		writeError(w, http.StatusBadRequest, "sample file required")
		return
	}
	defer file.Close()
	sample, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable sample")
		return
	}
	profile, err := s.voices.Upsert(name, sample, r.FormValue("provider_voice_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store voice failed")
		return
	}
	s.log.Info("voice_uploaded", slog.String("voice", profile.Name))
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.voices.List())
}

func (s *Server) handlePreviewVoice(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	profile, err := s.voices.Get(name)
	if errors.Is(err, voices.ErrNotFound) {
		writeError(w, http.StatusNotFound, "voice not found")
		return
	}
	artifact, err := s.synth.Synthesize(r.Context(), tts.Request{
		Text:            "Hi! This is a short preview of the " + profile.Name + " voice.",
		ReferenceWAV:    profile.ReferenceWAV,
		ProviderVoiceID: profile.ProviderVoiceID,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "synthesis failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": artifact.PublicURL})
}

func (s *Server) handleDeleteVoice(w http.ResponseWriter, r *http.Request) {
	err := s.voices.Delete(r.PathValue("name"))
	if errors.Is(err, voices.ErrNotFound) {
		writeError(w, http.StatusNotFound, "voice not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}
	var ref, voiceID string
	if req.Voice != "" {
		profile, err := s.voices.Get(req.Voice)
		if errors.Is(err, voices.ErrNotFound) {
			writeError(w, http.StatusNotFound, "voice not found")
			return
		}
		ref = profile.ReferenceWAV
		voiceID = profile.ProviderVoiceID
	}
	artifact, err := s.synth.Synthesize(r.Context(), tts.Request{
		Text:            req.Text,
		ReferenceWAV:    ref,
		ProviderVoiceID: voiceID,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "synthesis failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": artifact.PublicURL})
}

func (s *Server) verifySignature(w http.ResponseWriter, r *http.Request) bool {
	if s.validator == nil || !s.validator.Enabled() {
		return true
	}
	if s.validator.ValidateRequest(r) {
		return true
	}
	s.log.Warn("webhook_invalid_signature",
		slog.String("path", r.URL.Path),
		slog.String("reason_code", string(errorsx.ReasonWebhookInvalidSignature)))
	w.WriteHeader(http.StatusForbidden)
	return false
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(doc))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
