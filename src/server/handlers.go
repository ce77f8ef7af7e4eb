package server

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kaiwa/src/composer"
	"kaiwa/src/database"
	"kaiwa/src/ollama"
	"kaiwa/src/persona"
	"kaiwa/src/relay"
	"kaiwa/src/sanitize"
)

const defaultPrompt = "Hello"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexPage)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if !s.client.Healthy(ctx) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
		return
	}
	io.WriteString(w, "ok")
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()

	prompt := r.URL.Query().Get("prompt")
	if prompt == "" {
		prompt = defaultPrompt
	}

	personaName := r.URL.Query().Get("persona")
	if personaName == "" {
		personaName = s.settings.Persona.Default
	}

	logger := s.logger.With(
		zap.String("request_id", requestID),
		zap.String("persona", personaName),
	)
	logger.Info("chat request", zap.Int("prompt_chars", len(prompt)))

	record := &database.RequestRecord{
		RequestID:   requestID,
		Persona:     personaName,
		PromptChars: len(prompt),
	}

	profile, err := persona.Load(personaName)
	if err != nil {
		logger.Error("persona profile unavailable", zap.Error(err))
		http.Error(w, "persona profile unavailable", http.StatusInternalServerError)
		s.record(logger, record, database.StatusConfigError, start)
		return
	}

	// Policy gate runs before any upstream interaction.
	if phrase, hit := profile.ViolatedConstraint(prompt); hit {
		logger.Warn("prompt rejected", zap.String("constraint", phrase))
		http.Error(w, "I won't help with that.", http.StatusForbidden)
		s.record(logger, record, database.StatusRejected, start)
		return
	}

	composed := composer.ComposePrompt(profile, prompt)
	chatReq := ollama.ChatRequest{
		Model:    s.settings.Ollama.Model,
		Messages: []ollama.ChatMessage{{Role: "user", Content: composed}},
		Stream:   true,
	}

	// The random source is private to this request; the transform runs only
	// on the producer goroutine.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	transform := func(fragment string) string {
		cleaned := sanitize.Clean(fragment)
		if cleaned == "" {
			return ""
		}
		return persona.Augment(cleaned, profile, rng)
	}

	pipe := s.client.Chat(r.Context(), chatReq, transform)
	defer pipe.Disconnect()

	// Peek the first message so a connect-time failure becomes a clean
	// non-2xx response instead of an empty 200.
	first, ok := <-pipe.Messages()
	if ok && first.Kind == relay.KindError {
		logger.Error("upstream request failed", zap.Error(first.Err))
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		s.record(logger, record, database.StatusUpstreamError, start)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	status := database.StatusOK
	write := func(msg relay.Message) bool {
		switch msg.Kind {
		case relay.KindData:
			n, err := io.WriteString(w, msg.Fragment+" ")
			if err != nil {
				status = database.StatusCanceled
				return false
			}
			record.Fragments++
			record.BytesOut += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
			return true
		case relay.KindError:
			logger.Warn("stream aborted", zap.Error(msg.Err))
			status = database.StatusUpstreamError
			return false
		default: // KindEnd
			return false
		}
	}

	proceed := true
	if ok {
		proceed = write(first)
	}
	for proceed {
		msg, open := <-pipe.Messages()
		if !open {
			break
		}
		proceed = write(msg)
	}

	s.record(logger, record, status, start)
}

// record persists the request's accounting row when the store is enabled.
func (s *Server) record(logger *zap.Logger, rec *database.RequestRecord, status string, start time.Time) {
	if s.store == nil {
		return
	}
	rec.Status = status
	rec.DurationMS = time.Since(start).Milliseconds()
	if err := s.store.Record(rec); err != nil {
		logger.Warn("usage record failed", zap.Error(err))
	}
}
