// Package conversation runs exchanges against a streaming text endpoint and
// keeps the conversation history in step with what the server produced.
package conversation

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jbctechsolutions/streamchat/internal/application/ports"
	"github.com/jbctechsolutions/streamchat/internal/domain/chat"
	"github.com/jbctechsolutions/streamchat/internal/domain/errors"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/logging"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/tracing"
)

// DefaultEndpoint is the streaming endpoint used when none is configured.
const DefaultEndpoint = "https://streamingwords-53f47dwjva-uc.a.run.app"

// Orchestrator owns one conversation history and runs at most one exchange
// against it at a time.
type Orchestrator struct {
	transport  ports.TransportPort
	history    *chat.History
	counter    chat.TokenCounter
	budget     int
	endpoint   string
	systemText string
	logger     *logging.Logger
	tracer     *tracing.Tracer
	store      ports.TranscriptStoragePort

	busy atomic.Bool

	mu         sync.Mutex
	cancel     context.CancelFunc
	transcript *chat.Transcript
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEndpoint sets the URL exchanges are posted to.
func WithEndpoint(endpoint string) Option {
	return func(o *Orchestrator) {
		o.endpoint = endpoint
	}
}

// WithBudget sets the prompt token budget.
func WithBudget(budget int) Option {
	return func(o *Orchestrator) {
		o.budget = budget
	}
}

// WithSystemText sets the system text used when SendMessage gets none.
func WithSystemText(text string) Option {
	return func(o *Orchestrator) {
		o.systemText = text
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer *tracing.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// WithTranscriptStore saves the history after every committed exchange.
func WithTranscriptStore(store ports.TranscriptStoragePort) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// New creates an orchestrator sending through transport and measuring
// prompts with counter.
func New(transport ports.TransportPort, counter chat.TokenCounter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport:  transport,
		counter:    counter,
		endpoint:   DefaultEndpoint,
		systemText: chat.DefaultSystemText,
		logger:     logging.Default(),
		tracer:     tracing.Default(),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.history = chat.NewHistory(counter, o.budget)
	return o
}

// Budget returns the prompt token budget in effect.
func (o *Orchestrator) Budget() int {
	return o.history.Budget()
}

// SendMessage starts an exchange for text. An empty systemText selects the
// configured default, and a zero limit leaves the limit out of the request.
//
// It returns once the response status is known. On success the deltas are
// read from the returned Stream, and the turn is added to history only when
// that stream ends normally. Failures before streaming (a busy orchestrator,
// prompt overflow, transport or trust errors, a bad status) leave history
// untouched.
func (o *Orchestrator) SendMessage(ctx context.Context, text, systemText string, limit int) (*Stream, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, errors.NewError(errors.CodeBusy, "cannot send message", errors.ErrExchangeInFlight)
	}

	if systemText == "" {
		systemText = o.systemText
	}

	exchangeID := uuid.New().String()
	ctx, cancel := context.WithCancel(ctx)
	ctx = logging.WithExchangeID(ctx, exchangeID)
	ctx = logging.WithEndpoint(ctx, o.endpoint)
	ctx, span := o.tracer.StartExchangeSpan(ctx, exchangeID, o.endpoint)
	o.setCancel(cancel)

	s := &Stream{
		o:        o,
		id:       exchangeID,
		ctx:      ctx,
		cancel:   cancel,
		span:     span,
		userText: text,
		started:  time.Now(),
	}

	prompt, err := o.history.Fit(text, systemText)
	if err != nil {
		return nil, s.abort(err)
	}
	s.prompt = prompt
	span.SetPrompt(prompt.Tokens, len(prompt.Messages), prompt.Dropped)
	if prompt.Dropped > 0 {
		logging.LogPromptTruncated(ctx, o.logger, prompt.Dropped, prompt.Tokens, o.history.Budget())
	}

	body, err := encodeRequest(prompt.Messages, limit)
	if err != nil {
		return nil, s.abort(errors.NewError(errors.CodeValidation, "failed to encode request", err))
	}

	logging.LogExchangeStart(ctx, o.logger, prompt.Tokens, len(prompt.Messages), limit)

	resp, err := o.transport.Do(ctx, &ports.Request{
		Method: http.MethodPost,
		URL:    o.endpoint,
		Header: map[string]string{"Content-Type": "application/json"},
		Body:   body,
	})
	if err != nil {
		return nil, s.abort(err)
	}
	if resp == nil || resp.Lines == nil {
		return nil, s.abort(errors.NewError(errors.CodeTransport, "transport returned no response body", errors.ErrInvalidResponse))
	}

	span.SetStatusCode(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bad, err := readErrorBody(resp)
		if err != nil {
			return nil, s.abort(err)
		}
		logging.LogBadStatus(ctx, o.logger, bad.StatusCode, bad.Reason)
		return nil, s.abort(bad)
	}

	s.start(resp.Lines)
	return s, nil
}

// Cancel aborts the exchange in flight, if any, and reports whether there
// was one. Its stream then fails with context.Canceled.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// Busy reports whether an exchange is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// History returns a copy of the committed history.
func (o *Orchestrator) History() []chat.Message {
	return o.history.Messages()
}

// ClearHistory empties the history and starts a new transcript. It fails
// with ErrExchangeInFlight while an exchange runs.
func (o *Orchestrator) ClearHistory() error {
	if !o.busy.CompareAndSwap(false, true) {
		return errors.NewError(errors.CodeBusy, "cannot clear history", errors.ErrExchangeInFlight)
	}
	defer o.busy.Store(false)

	o.history.Clear()
	o.mu.Lock()
	o.transcript = nil
	o.mu.Unlock()
	return nil
}

// ReplaceHistory swaps the history for a copy of messages. It fails with
// ErrExchangeInFlight while an exchange runs.
func (o *Orchestrator) ReplaceHistory(messages []chat.Message) error {
	if !o.busy.CompareAndSwap(false, true) {
		return errors.NewError(errors.CodeBusy, "cannot replace history", errors.ErrExchangeInFlight)
	}
	defer o.busy.Store(false)

	if err := o.history.Replace(messages); err != nil {
		return errors.NewError(errors.CodeValidation, "cannot replace history", err)
	}
	return nil
}

// Resume loads a saved transcript into history; later exchanges keep
// saving to it.
func (o *Orchestrator) Resume(ctx context.Context, transcriptID string) error {
	if o.store == nil {
		return errors.NewError(errors.CodeConfiguration, "no transcript store configured", nil)
	}

	t, err := o.store.Get(ctx, transcriptID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	if err := o.ReplaceHistory(t.Messages); err != nil {
		return err
	}

	o.mu.Lock()
	o.transcript = t
	o.mu.Unlock()
	return nil
}

// TranscriptID returns the ID of the transcript history is saved to, or ""
// before anything was saved.
func (o *Orchestrator) TranscriptID() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.transcript == nil {
		return ""
	}
	return o.transcript.ID
}

func (o *Orchestrator) setCancel(cancel context.CancelFunc) {
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
}

// release ends the exchange bookkeeping and frees the guard.
func (o *Orchestrator) release() {
	o.setCancel(nil)
	o.busy.Store(false)
}

// saveTranscript persists the committed history. Failures are logged only:
// the exchange itself already succeeded.
func (o *Orchestrator) saveTranscript(ctx context.Context) {
	if o.store == nil {
		return
	}

	o.mu.Lock()
	if o.transcript == nil {
		o.transcript = chat.NewTranscript()
	}
	t := o.transcript
	t.SetMessages(o.history.Messages())
	o.mu.Unlock()

	ctx = logging.WithConversationID(ctx, t.ID)
	if err := o.store.Save(ctx, t); err != nil {
		logging.LogTranscriptSaveFailed(ctx, o.logger, t.ID, err)
	}
}
