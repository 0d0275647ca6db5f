package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/scatty/backend/internal/config"
	"github.com/zhouzirui/scatty/backend/internal/metrics"
	"github.com/zhouzirui/scatty/backend/internal/model/chat"
	"github.com/zhouzirui/scatty/backend/internal/model/protocol"
	"github.com/zhouzirui/scatty/backend/internal/service/ai"
)

const (
	msgTranscriptFailed = "Failed to process your message"
	msgVisionFailed     = "Failed to process image"
	msgInvalidFrame     = "Could not decode the camera frame"
	msgInternal         = "Something went wrong, please try again"
)

// Emitter receives the server events produced for one client event.
type Emitter interface {
	Emit(ev protocol.ServerEvent)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ev protocol.ServerEvent)

func (f EmitterFunc) Emit(ev protocol.ServerEvent) { f(ev) }

// SessionStore is the part of the session store used by the orchestrator.
type SessionStore interface {
	GetOrCreate(ctx context.Context, sessionID string) chat.Session
	AddMessage(ctx context.Context, sessionID string, role chat.Role, content string, hasImage bool) chat.Message
	History(ctx context.Context, sessionID string) []chat.Message
	Delete(ctx context.Context, sessionID string)
	Hold(ctx context.Context, sessionID string) (release func())
}

// Orchestrator runs the per-session state machine. Events for one session are handled
// strictly in arrival order; different sessions proceed independently.
type Orchestrator struct {
	store     SessionStore
	generator ai.Generator
	cfg       config.ConversationConfig
	logger    zerolog.Logger
	pause     Pause
	jitter    func(n int64) int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	lanes  map[string]*lane
	states map[string]protocol.State
	closed bool
}

type lane struct {
	pending []job
}

type job struct {
	event protocol.ClientEvent
	out   Emitter
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithPause replaces the sleep used for the vision delay and retry backoff.
func WithPause(p Pause) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.pause = p
		}
	}
}

// New creates an orchestrator. Close must be called to wait for in-flight turns.
func New(store SessionStore, generator ai.Generator, cfg config.ConversationConfig, logger zerolog.Logger, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		store:     store,
		generator: generator,
		cfg:       cfg,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
		pause:     Sleep,
		jitter:    defaultJitter,
		ctx:       ctx,
		cancel:    cancel,
		lanes:     make(map[string]*lane),
		states:    make(map[string]protocol.State),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dispatch queues ev behind any earlier events of the same session and returns at once.
func (o *Orchestrator) Dispatch(ev protocol.ClientEvent, out Emitter) {
	metrics.EventsReceived.WithLabelValues(string(ev.Name())).Inc()
	if t, ok := ev.(protocol.Transcript); ok && !t.IsFinal {
		return
	}

	sessionID := ev.Session()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		o.logger.Warn().Str("session", sessionID).Str("event", string(ev.Name())).Msg("orchestrator closed, dropping event")
		return
	}

	l, running := o.lanes[sessionID]
	if !running {
		l = &lane{}
		o.lanes[sessionID] = l
	}
	l.pending = append(l.pending, job{event: ev, out: out})
	if !running {
		o.wg.Add(1)
		go o.drain(sessionID, l)
	}
}

func (o *Orchestrator) drain(sessionID string, l *lane) {
	defer o.wg.Done()
	for {
		o.mu.Lock()
		if len(l.pending) == 0 {
			delete(o.lanes, sessionID)
			o.mu.Unlock()
			return
		}
		next := l.pending[0]
		l.pending[0] = job{}
		l.pending = l.pending[1:]
		o.mu.Unlock()

		o.Handle(o.ctx, next.event, next.out)
	}
}

// Handle processes one event synchronously. Every failure is reported through out; a turn
// that emitted a busy state always ends with state:update{idle}.
func (o *Orchestrator) Handle(ctx context.Context, ev protocol.ClientEvent, out Emitter) {
	sessionID := ev.Session()
	logger := o.logger.With().Str("session", sessionID).Str("event", string(ev.Name())).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("event handling panicked")
			o.emitError(out, sessionID, msgInternal, protocol.CodeInternal)
			o.setState(out, sessionID, protocol.StateIdle)
		}
	}()

	switch e := ev.(type) {
	case protocol.SessionStart:
		o.store.GetOrCreate(ctx, e.SessionID)
		out.Emit(protocol.SessionStarted{SessionID: e.SessionID})
		o.setState(out, e.SessionID, protocol.StateIdle)
		logger.Info().Msg("session started")
	case protocol.SessionEnd:
		o.store.Delete(ctx, e.SessionID)
		o.clearState(e.SessionID)
		logger.Info().Msg("session ended")
	case protocol.Transcript:
		o.handleTranscript(ctx, logger, e, out)
	case protocol.Vision:
		o.handleVision(ctx, logger, e, out)
	default:
		panic(fmt.Sprintf("unhandled client event %T", ev))
	}
}

func (o *Orchestrator) handleTranscript(ctx context.Context, logger zerolog.Logger, e protocol.Transcript, out Emitter) {
	text := strings.TrimSpace(e.Text)
	if !e.IsFinal || text == "" {
		logger.Debug().Bool("final", e.IsFinal).Msg("ignoring transcript")
		return
	}
	logger.Info().Int("length", len(text)).Msg("processing transcript")

	release := o.store.Hold(ctx, e.SessionID)
	defer release()

	history := o.store.History(ctx, e.SessionID)
	o.store.AddMessage(ctx, e.SessionID, chat.RoleUser, text, false)
	o.setState(out, e.SessionID, protocol.StateThinking)

	reply, err := o.generate(ctx, ai.Request{
		SessionID: e.SessionID,
		History:   ai.TrimHistory(history, o.cfg.HistoryLimit),
		Text:      text,
	})
	if err != nil {
		o.fail(logger, out, e.SessionID, msgTranscriptFailed, err)
		return
	}
	o.complete(ctx, out, e.SessionID, reply)
}

func (o *Orchestrator) handleVision(ctx context.Context, logger zerolog.Logger, e protocol.Vision, out Emitter) {
	image, err := DecodeFrame(e.Frame)
	if err != nil {
		logger.Warn().Err(err).Int("frameLength", len(e.Frame)).Msg("rejecting vision frame")
		o.emitError(out, e.SessionID, msgInvalidFrame, protocol.CodeInvalidFrame)
		return
	}

	text := strings.TrimSpace(e.Text)
	if text == "" {
		text = DefaultVisionPrompt
	}
	logger.Info().Int("length", len(text)).Str("mime", image.MIMEType).Int("bytes", len(image.Data)).Msg("processing vision")

	release := o.store.Hold(ctx, e.SessionID)
	defer release()

	history := o.store.History(ctx, e.SessionID)
	o.store.AddMessage(ctx, e.SessionID, chat.RoleUser, text, true)
	o.setState(out, e.SessionID, protocol.StateLooking)

	if err := o.pause(ctx, o.cfg.VisionDelay); err != nil {
		o.fail(logger, out, e.SessionID, msgVisionFailed, ai.Fail("orchestrator", err, false))
		return
	}
	o.setState(out, e.SessionID, protocol.StateThinking)

	reply, err := o.generate(ctx, ai.Request{
		SessionID: e.SessionID,
		History:   ai.TrimHistory(history, o.cfg.HistoryLimit),
		Text:      text,
		Image:     image,
	})
	if err != nil {
		o.fail(logger, out, e.SessionID, msgVisionFailed, err)
		return
	}
	o.complete(ctx, out, e.SessionID, reply)
}

func (o *Orchestrator) complete(ctx context.Context, out Emitter, sessionID string, reply ai.Reply) {
	o.setState(out, sessionID, protocol.StateSpeaking)
	o.store.AddMessage(ctx, sessionID, chat.RoleAssistant, reply.Text, false)
	out.Emit(protocol.ResponseComplete{
		FullText:  reply.Text,
		SessionID: sessionID,
		Emotion:   reply.Emotion,
	})
	o.setState(out, sessionID, protocol.StateIdle)
}

func (o *Orchestrator) fail(logger zerolog.Logger, out Emitter, sessionID, message string, err error) {
	code := protocol.CodeGenerationFailed
	if errors.Is(err, ai.ErrGenerationTimeout) {
		code = protocol.CodeGenerationTimeout
	}
	logger.Error().Err(err).Str("code", code).Msg("generation failed")
	o.emitError(out, sessionID, message, code)
	o.setState(out, sessionID, protocol.StateIdle)
}

func (o *Orchestrator) emitError(out Emitter, sessionID, message, code string) {
	out.Emit(protocol.Error{Message: message, Code: code, SessionID: sessionID})
}

func (o *Orchestrator) setState(out Emitter, sessionID string, state protocol.State) {
	o.mu.Lock()
	if state == protocol.StateIdle {
		delete(o.states, sessionID)
	} else {
		o.states[sessionID] = state
	}
	o.mu.Unlock()

	out.Emit(protocol.StateUpdate{State: state, SessionID: sessionID})
}

func (o *Orchestrator) clearState(sessionID string) {
	o.mu.Lock()
	delete(o.states, sessionID)
	o.mu.Unlock()
}

// State returns the last state emitted for the session; sessions without a turn in progress are idle.
func (o *Orchestrator) State(sessionID string) protocol.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if state, ok := o.states[sessionID]; ok {
		return state
	}
	return protocol.StateIdle
}

// EndSession deletes the session the same way a session:end event does, behind any queued turns.
func (o *Orchestrator) EndSession(sessionID string) {
	o.Dispatch(protocol.SessionEnd{SessionID: sessionID}, EmitterFunc(func(protocol.ServerEvent) {}))
}

// Close cancels in-flight generation and waits for every queued event to finish.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}
