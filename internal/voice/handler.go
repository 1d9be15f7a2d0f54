package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sahaj-careers/sahaj/internal/conversation"
	"github.com/sahaj-careers/sahaj/internal/llm"
	"github.com/sahaj-careers/sahaj/internal/observability"
	"github.com/sahaj-careers/sahaj/internal/policy"
	"github.com/sahaj-careers/sahaj/internal/profile"
	"github.com/sahaj-careers/sahaj/internal/protocol"
	"github.com/sahaj-careers/sahaj/internal/session"
	"github.com/sahaj-careers/sahaj/internal/speech"
	"github.com/sahaj-careers/sahaj/internal/store"
)

// User-facing error texts. Clients show these verbatim.
const (
	msgRetryAudio     = "Could not understand audio. Please try again."
	msgSpeechFailed   = "Speech service is unavailable right now. Please try again."
	msgModelFailed    = "Sorry, I could not answer that. Please try again."
	msgStorageFailed  = "Could not save your progress. Please try again."
	msgSessionBusy    = "This session is already open in another window."
	msgUnknownState   = "Unknown conversation state."
	msgHandshakeError = "Could not start the session. Please reconnect."

	greetingKnownFmt = "Namaste %s! Main Sahaj hoon, aapka career guide. Aaj kya madad karoon?"
	greetingNew      = "Namaste! Main Sahaj hoon, aapka career guide. Pehle apna naam bataiye?"

	outboundSendTimeout = 2 * time.Second
	persistTimeout      = 5 * time.Second
)

// Advancer runs one conversational turn. *conversation.Orchestrator is the
// production implementation.
type Advancer interface {
	Advance(ctx context.Context, req conversation.Request) (conversation.TurnResult, error)
}

// Config tunes the handler. Labels only feed metrics.
type Config struct {
	ProviderTimeout time.Duration
	DefaultLanguage string
	Speaker         string
	LLMLabel        string
	SpeechLabel     string
}

// Handler drives one voice connection from handshake to close. Every frame
// is fully processed before the next one is read.
type Handler struct {
	cfg      Config
	store    store.Store
	brain    Advancer
	speech   speech.Provider
	sessions *session.Manager
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(
	cfg Config,
	st store.Store,
	brain Advancer,
	sp speech.Provider,
	sessions *session.Manager,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Handler {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 25 * time.Second
	}
	if strings.TrimSpace(cfg.DefaultLanguage) == "" {
		cfg.DefaultLanguage = speech.DefaultLanguage
	}
	if cfg.LLMLabel == "" {
		cfg.LLMLabel = "llm"
	}
	if cfg.SpeechLabel == "" {
		cfg.SpeechLabel = "speech"
	}
	if metrics == nil {
		metrics = observability.NewMetrics("sahaj", nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:      cfg,
		store:    st,
		brain:    brain,
		speech:   sp,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// conn is the per-connection state. Only the RunConnection goroutine
// touches it.
type conn struct {
	user     profile.Profile
	sess     session.Session
	outbound chan<- any
	logger   *zap.Logger
}

// RunConnection performs the handshake for init and then processes inbound
// frames until ctx is cancelled or inbound is closed. Inbound values are
// protocol.Audio, protocol.TextMessage and protocol.ChangeState; anything
// else is ignored. A closed peer is not an error.
func (h *Handler) RunConnection(ctx context.Context, init protocol.Init, inbound <-chan any, outbound chan<- any) error {
	lang := strings.TrimSpace(init.Language)
	if lang == "" {
		lang = h.cfg.DefaultLanguage
	}
	userID, err := h.resolveUser(ctx, init.UserID, lang)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		h.send(ctx, outbound, protocol.NewError("handshake_failed", msgHandshakeError))
		return fmt.Errorf("resolve user: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if h.sessions != nil {
		release, err := h.sessions.Attach(userID, cancel)
		if err != nil {
			h.metrics.SessionEvent("attach_refused")
			h.send(ctx, outbound, protocol.NewError("session_busy", msgSessionBusy))
			return err
		}
		defer release()
	}

	// Profile and session are read only after the claim is held.
	c, err := h.load(ctx, userID, outbound)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		h.send(ctx, outbound, protocol.NewError("handshake_failed", msgHandshakeError))
		return err
	}
	if h.sessions != nil {
		h.sessions.Bind(userID, c.sess.ID)
	}

	h.metrics.ActiveConnections.Inc()
	defer h.metrics.ActiveConnections.Dec()
	h.metrics.SessionEvent("connected")
	c.logger.Info("voice session connected", zap.String("state", c.sess.CurrentState.String()))

	h.send(ctx, outbound, protocol.SessionInit{
		Type:      protocol.TypeSessionInit,
		UserID:    c.user.ID,
		SessionID: c.sess.ID,
		State:     c.sess.CurrentState.String(),
		Profile:   c.user.Snapshot(),
	})
	h.sendGreeting(ctx, c, init.Language)

	for {
		select {
		case <-ctx.Done():
			h.metrics.SessionEvent("disconnected")
			return nil
		case msg, ok := <-inbound:
			if !ok {
				h.metrics.SessionEvent("disconnected")
				c.logger.Info("voice session closed")
				return nil
			}
			if h.sessions != nil {
				h.sessions.Touch(c.user.ID)
			}
			switch m := msg.(type) {
			case protocol.Audio:
				h.handleAudio(ctx, c, m.Data)
			case protocol.TextMessage:
				h.runTurn(ctx, c, turnInput{text: m.Text, started: time.Now()})
			case protocol.ChangeState:
				h.handleChangeState(ctx, c, m.State)
			default:
				h.metrics.SessionEvent("frame_ignored")
			}
		}
	}
}

// load reads the user's profile and latest session, creating the session
// on first contact.
func (h *Handler) load(ctx context.Context, userID string, outbound chan<- any) (*conn, error) {
	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	sess, err := h.store.LatestSession(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		sess, err = h.store.CreateSession(ctx, user.ID, session.StateGreeting)
		if err == nil {
			h.metrics.SessionEvent("session_created")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	return &conn{
		user:     user,
		sess:     sess,
		outbound: outbound,
		logger: h.logger.With(
			zap.String("user_id", user.ID),
			zap.String("session_id", sess.ID),
		),
	}, nil
}

// resolveUser returns userID when it exists, or the id of a fresh user when
// it is empty or unknown.
func (h *Handler) resolveUser(ctx context.Context, userID, lang string) (string, error) {
	if id := strings.TrimSpace(userID); id != "" {
		_, err := h.store.GetUser(ctx, id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		h.logger.Info("unknown user id on handshake, creating a new user", zap.String("requested_user_id", id))
	}
	p, err := h.store.CreateUser(ctx, profile.Profile{PreferredLanguage: lang})
	if err != nil {
		return "", err
	}
	h.metrics.SessionEvent("user_created")
	return p.ID, nil
}

func (h *Handler) sendGreeting(ctx context.Context, c *conn, initLanguage string) {
	text := greetingNew
	if name := strings.TrimSpace(c.user.Name); name != "" {
		text = fmt.Sprintf(greetingKnownFmt, name)
	}
	lang := strings.TrimSpace(initLanguage)
	if lang == "" {
		lang = c.user.PreferredLanguage
	}
	audio, _ := h.synthesize(ctx, c, text, lang)
	h.send(ctx, c.outbound, protocol.Greeting{
		Type:          protocol.TypeGreeting,
		ResponseText:  text,
		ResponseAudio: protocol.EncodeAudio(audio),
		State:         c.sess.CurrentState.String(),
	})
}

func (h *Handler) handleAudio(ctx context.Context, c *conn, clip []byte) {
	started := time.Now()
	sttCtx, cancel := context.WithTimeout(ctx, h.cfg.ProviderTimeout)
	tr, err := h.speech.SpeechToText(sttCtx, clip, c.user.PreferredLanguage)
	cancel()
	sttTook := time.Since(started)
	h.metrics.ObserveStage(observability.StageSTT, sttTook)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.metrics.ProviderError(h.cfg.SpeechLabel, "stt_failed")
		c.logger.Warn("speech to text failed", zap.Error(err))
		h.send(ctx, c.outbound, protocol.NewError("stt_failed", msgSpeechFailed))
		return
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		h.metrics.SessionEvent("empty_transcript")
		h.send(ctx, c.outbound, protocol.NewError("empty_transcript", msgRetryAudio))
		return
	}

	lang := strings.TrimSpace(tr.Language)
	if lang != "" && lang != c.user.PreferredLanguage {
		h.switchLanguage(ctx, c, lang)
	}
	c.logger.Debug("transcribed audio",
		zap.String("language", lang),
		zap.Float64("confidence", tr.Confidence),
		zap.String("transcript", policy.ForLog(text)),
	)
	h.runTurn(ctx, c, turnInput{text: text, speakLang: lang, started: started, stt: sttTook})
}

func (h *Handler) switchLanguage(ctx context.Context, c *conn, lang string) {
	updates := profile.Updates{}
	updates.Set(profile.KeyPreferredLanguage, lang)
	next := profile.Merge(c.user, updates)
	next.UpdatedAt = h.now()

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := h.store.UpdateUser(pctx, next); err != nil {
		c.logger.Warn("persist detected language failed", zap.Error(err))
		return
	}
	c.logger.Info("preferred language changed",
		zap.String("from", c.user.PreferredLanguage),
		zap.String("to", lang),
	)
	c.user = next
}

// turnInput is one user utterance. speakLang overrides the reply voice for
// audio turns; empty means the profile language. stt is zero for typed text.
type turnInput struct {
	text      string
	speakLang string
	started   time.Time
	stt       time.Duration
}

// runTurn runs one full turn.
func (h *Handler) runTurn(ctx context.Context, c *conn, in turnInput) {
	text := in.text
	timing := observability.TurnTiming{STT: in.stt}

	llmStarted := time.Now()
	llmCtx, cancel := context.WithTimeout(ctx, h.cfg.ProviderTimeout)
	res, err := h.brain.Advance(llmCtx, conversation.Request{
		UserMessage: text,
		State:       c.sess.CurrentState,
		Profile:     c.user,
		Turns:       c.sess.Turns,
		Context:     c.sess.Context,
	})
	cancel()
	timing.LLM = time.Since(llmStarted)
	h.metrics.ObserveStage(observability.StageLLM, timing.LLM)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.metrics.ProviderError(h.cfg.LLMLabel, providerErrorCode(err))
		c.logger.Warn("conversation turn failed",
			zap.Error(err),
			zap.String("message", policy.ForLog(text)),
		)
		h.send(ctx, c.outbound, protocol.NewError("llm_failed", msgModelFailed))
		return
	}

	applied := session.Apply(c.sess, c.user, session.Outcome{
		UserText:       text,
		AssistantText:  res.ConversationText,
		ProfileUpdates: res.ProfileUpdates,
		Transition:     res.StateTransition,
	}, h.now())

	if err := h.persistTurn(ctx, c, applied); err != nil {
		c.logger.Error("persist turn failed", zap.Error(err))
		h.send(ctx, c.outbound, protocol.NewError("storage_failed", msgStorageFailed))
		return
	}
	h.recordTransition(c, applied, res.StateTransition)
	h.captureResume(ctx, c, applied, res)

	lang := in.speakLang
	if lang == "" {
		lang = c.user.PreferredLanguage
	}
	audio, ttsTook := h.synthesize(ctx, c, res.ConversationText, lang)
	timing.TTS = ttsTook

	recs := res.Recommendations
	if recs == nil {
		recs = []json.RawMessage{}
	}
	h.send(ctx, c.outbound, protocol.Response{
		Type:            protocol.TypeResponse,
		Transcript:      text,
		ResponseText:    res.ConversationText,
		ResponseAudio:   protocol.EncodeAudio(audio),
		ProfileUpdate:   applied.Updates,
		Recommendations: recs,
		State:           c.sess.CurrentState.String(),
		DiscoveryStep:   c.user.DiscoveryStep,
		ProfileComplete: c.user.ProfileComplete,
	})
	timing.Total = time.Since(in.started)
	h.metrics.ObserveTurn(timing)
}

// persistTurn writes the profile (when changed) and then the session. The
// connection copy follows every write that succeeds, so a failure part way
// never leaves it behind the store. Writes survive a peer that has just
// gone away.
func (h *Handler) persistTurn(ctx context.Context, c *conn, applied session.Applied) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if applied.ProfileChanged() {
		if err := h.store.UpdateUser(pctx, applied.Profile); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		c.user = applied.Profile
	}
	if err := h.store.UpdateSession(pctx, applied.Session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	c.sess = applied.Session
	return nil
}

// captureResume stores the first recommendation as a resume draft when the
// turn entered resume_ready. It never fails the turn.
func (h *Handler) captureResume(ctx context.Context, c *conn, applied session.Applied, res conversation.TurnResult) {
	if applied.To != session.StateResumeReady || applied.From == session.StateResumeReady || len(res.Recommendations) == 0 {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	r, err := h.store.CreateResume(pctx, store.Resume{
		UserID:      c.user.ID,
		SessionID:   c.sess.ID,
		Data:        res.Recommendations[0],
		GeneratedAt: h.now(),
	})
	if err != nil {
		h.metrics.SessionEvent("resume_capture_failed")
		c.logger.Warn("resume draft capture failed", zap.Error(err))
		return
	}
	h.metrics.SessionEvent("resume_captured")
	c.logger.Info("resume draft captured", zap.String("resume_id", r.ID))
}

func (h *Handler) recordTransition(c *conn, applied session.Applied, requested string) {
	switch applied.Kind {
	case session.TransitionRejected:
		h.metrics.SessionEvent("invalid_transition")
		c.logger.Warn("model requested unknown state", zap.String("requested", requested))
	case session.TransitionMove, session.TransitionComplete:
		if applied.From != applied.To {
			h.metrics.Transition(applied.From.String(), applied.To.String())
		}
		if applied.Kind == session.TransitionComplete {
			h.metrics.SessionEvent("profile_complete")
		}
	}
}

func (h *Handler) handleChangeState(ctx context.Context, c *conn, target string) {
	next, err := session.Override(c.sess, target, h.now())
	if err != nil {
		h.metrics.SessionEvent("invalid_state_override")
		h.send(ctx, c.outbound, protocol.NewError("unknown_state", msgUnknownState))
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := h.store.UpdateSession(pctx, next); err != nil {
		c.logger.Error("persist state override failed", zap.Error(err))
		h.send(ctx, c.outbound, protocol.NewError("storage_failed", msgStorageFailed))
		return
	}
	if c.sess.CurrentState != next.CurrentState {
		h.metrics.Transition(c.sess.CurrentState.String(), next.CurrentState.String())
	}
	c.sess = next
	h.send(ctx, c.outbound, protocol.StateChanged{
		Type:  protocol.TypeStateChanged,
		State: next.CurrentState.String(),
	})
}

// synthesize is best-effort: failures and unsupported languages yield nil.
// The duration is zero when no synthesis was attempted.
func (h *Handler) synthesize(ctx context.Context, c *conn, text, lang string) ([]byte, time.Duration) {
	text = spokenText(text)
	if text == "" || !speech.SupportsSynthesis(lang) {
		return nil, 0
	}
	started := time.Now()
	ttsCtx, cancel := context.WithTimeout(ctx, h.cfg.ProviderTimeout)
	defer cancel()
	audio, err := h.speech.TextToSpeech(ttsCtx, text, lang, h.cfg.Speaker)
	took := time.Since(started)
	h.metrics.ObserveStage(observability.StageTTS, took)
	if err != nil {
		if ctx.Err() == nil {
			h.metrics.ProviderError(h.cfg.SpeechLabel, "tts_failed")
			c.logger.Warn("text to speech failed", zap.String("language", lang), zap.Error(err))
		}
		return nil, took
	}
	return audio, took
}

// send delivers msg unless the connection is gone or the writer is stuck.
func (h *Handler) send(ctx context.Context, outbound chan<- any, msg any) {
	timer := time.NewTimer(outboundSendTimeout)
	defer timer.Stop()
	select {
	case outbound <- msg:
	case <-ctx.Done():
		h.metrics.SessionEvent("outbound_drop")
	case <-timer.C:
		h.metrics.SessionEvent("outbound_timeout")
	}
}

func providerErrorCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, llm.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "error"
	}
}
