package conversation

import (
	"context"
	goerrors "errors"
	"io"
	"sync"
	"time"

	"github.com/jbctechsolutions/streamchat/internal/application/ports"
	"github.com/jbctechsolutions/streamchat/internal/application/stream"
	"github.com/jbctechsolutions/streamchat/internal/domain/chat"
	"github.com/jbctechsolutions/streamchat/internal/domain/errors"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/logging"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/tracing"
)

// Stream delivers the deltas of one exchange in wire order. Recv must be
// called from a single goroutine; Close may be called from any.
type Stream struct {
	o        *Orchestrator
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	span     *tracing.ExchangeSpan
	userText string
	prompt   *chat.Prompt
	started  time.Time

	lines   ports.LineReader
	decMu   sync.Mutex
	decoder *stream.Decoder

	once sync.Once
	mu   sync.Mutex
	err  error
	done bool
}

// ID returns the exchange ID.
func (s *Stream) ID() string {
	return s.id
}

// Recv returns the next delta. When the stream ends normally the turn is
// committed to history and Recv returns io.EOF. Any other error means the
// exchange failed and history is unchanged; a failure after some text
// arrived is a *stream.PartialError. After the first error every call
// returns it again.
func (s *Stream) Recv() (string, error) {
	if err := s.terminal(); err != nil {
		return "", err
	}

	s.decMu.Lock()
	delta, err := s.decoder.Next()
	res := s.decoder.Result()
	s.decMu.Unlock()

	if err == nil {
		return delta, nil
	}

	if goerrors.Is(err, io.EOF) {
		s.finish(nil, res)
	} else {
		if ctxErr := s.ctx.Err(); ctxErr != nil && !goerrors.Is(err, ctxErr) {
			err = ctxErr
		}
		if res.Text != "" {
			err = &stream.PartialError{Partial: res.Text, Err: err}
		}
		s.finish(err, res)
	}
	return "", s.terminal()
}

// Close ends the exchange. Closing before Recv returned io.EOF cancels it
// without committing. Close is idempotent.
func (s *Stream) Close() error {
	s.cancel()
	s.finish(context.Canceled, s.Result())
	return nil
}

// Result returns the decoding outcome so far.
func (s *Stream) Result() stream.Result {
	s.decMu.Lock()
	defer s.decMu.Unlock()
	return s.decoder.Result()
}

// Prompt returns the prompt that was sent.
func (s *Stream) Prompt() *chat.Prompt {
	return s.prompt
}

func (s *Stream) start(lines ports.LineReader) {
	s.lines = lines
	s.decoder = stream.NewDecoder(lines)
}

func (s *Stream) terminal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.done {
		return nil
	}
	if s.err == nil {
		return io.EOF
	}
	return s.err
}

// finish runs once per exchange: it commits on success, records the
// outcome and releases the orchestrator.
func (s *Stream) finish(err error, res stream.Result) {
	s.once.Do(func() {
		s.span.SetStream(res.Deltas, len(res.Text))

		if err == nil {
			s.o.history.Commit(s.prompt, s.userText, res.Text)
			s.span.SetCommitted(true)
			logging.LogExchangeComplete(s.ctx, s.o.logger, res.Deltas, len(res.Text), time.Since(s.started))
			s.o.saveTranscript(s.ctx)
			s.span.End()
		} else {
			s.span.SetCommitted(false)
			logging.LogExchangeFailed(s.ctx, s.o.logger, err, len(res.Text), time.Since(s.started))
			s.span.EndWithError(err)
		}

		s.mu.Lock()
		s.err = err
		s.done = true
		s.mu.Unlock()

		s.lines.Close()
		s.cancel()
		s.o.release()
	})
}

// abort ends an exchange that failed before streaming began.
func (s *Stream) abort(err error) error {
	s.span.SetCommitted(false)
	logging.LogExchangeFailed(s.ctx, s.o.logger, err, 0, time.Since(s.started))
	s.span.EndWithError(err)
	s.cancel()
	s.o.release()
	return err
}

func readErrorBody(resp *ports.Response) (*errors.BadStatusError, error) {
	defer resp.Lines.Close()
	return stream.ReadErrorBody(resp.StatusCode, resp.Lines)
}
