// Package application provides application-level services and dependency injection.
package application

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jbctechsolutions/streamchat/internal/adapters/transport/httpstream"
	"github.com/jbctechsolutions/streamchat/internal/application/conversation"
	"github.com/jbctechsolutions/streamchat/internal/application/ports"
	"github.com/jbctechsolutions/streamchat/internal/domain/chat"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/config"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/logging"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/pinning"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/storage"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/tokenizer"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/tracing"
)

// Container holds all application dependencies and provides a central
// point for dependency injection. It manages the lifecycle of services
// and ensures proper initialization order.
type Container struct {
	config  *config.Config
	verbose bool // Force debug logging when true

	// Observability
	logger *logging.Logger
	tracer *tracing.Tracer

	// Exchange stack
	counter   chat.TokenCounter
	validator *pinning.Validator
	transport *httpstream.Client

	// Persistence
	dbConn      *storage.Connection
	transcripts ports.TranscriptStoragePort
}

// NewContainer creates a new dependency injection container with all services
// initialized based on the provided configuration.
func NewContainer(cfg *config.Config, verbose bool) (*Container, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	c := &Container{
		config:  cfg,
		verbose: verbose,
	}

	if err := c.initObservability(); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	c.initTokenizer()

	if err := c.initPinning(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize certificate pinning: %w", err)
	}

	c.initTransport()

	if err := c.initStorage(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return c, nil
}

func (c *Container) initObservability() error {
	logLevel := logging.LevelInfo
	switch c.config.Logging.Level {
	case "debug":
		logLevel = logging.LevelDebug
	case "warn":
		logLevel = logging.LevelWarn
	case "error":
		logLevel = logging.LevelError
	}

	logFormat := logging.FormatText
	if c.config.Logging.Format == "json" {
		logFormat = logging.FormatJSON
	}

	c.logger = logging.New(logging.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stderr,
	})
	// --verbose overrides the configured level.
	if c.verbose {
		c.logger.SetLevel(logging.LevelDebug)
	}

	if !c.config.Tracing.Enabled {
		c.tracer = tracing.Default()
		return nil
	}

	tracer, err := tracing.New(context.Background(), tracing.Config{
		Enabled:      true,
		ExporterType: tracing.ExporterType(c.config.Tracing.ExporterType),
		OTLPEndpoint: c.config.Tracing.OTLPEndpoint,
		ServiceName:  c.config.Tracing.ServiceName,
		Environment:  "production",
		SampleRate:   c.config.Tracing.SampleRate,
		Output:       os.Stderr, // stdout carries the conversation
	})
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	c.tracer = tracer
	return nil
}

// initTokenizer falls back to the character heuristic when the configured
// encoding cannot be loaded, so chatting still works offline. An empty
// encoding selects the heuristic outright.
func (c *Container) initTokenizer() {
	if c.config.Tokenizer.Encoding == "" {
		c.counter = tokenizer.NewSimpleEstimator()
		return
	}

	counter, err := tokenizer.NewCounter(c.config.Tokenizer.Encoding)
	if err != nil {
		c.logger.Warn("token encoding unavailable, using heuristic counter",
			"encoding", c.config.Tokenizer.Encoding,
			"error", err.Error(),
		)
	}
	c.counter = counter
}

func (c *Container) initPinning() error {
	if !c.config.Pinning.Enabled {
		c.logger.Warn("certificate pinning disabled")
		return nil
	}

	dir, err := config.ExpandPath(c.config.Pinning.Directory)
	if err != nil {
		return err
	}

	set, loadErrs := pinning.LoadPinnedSet(os.DirFS(dir), c.config.Pinning.Names...)
	for _, err := range loadErrs {
		var le *pinning.LoadError
		if errors.As(err, &le) {
			logging.LogPinLoadFailure(c.logger, le.Name, le.Err)
		}
	}

	validator, err := pinning.NewValidator(set, pinning.WithLogger(c.logger))
	if err != nil {
		return fmt.Errorf("no usable pins in %s: %w", dir, err)
	}
	c.validator = validator
	return nil
}

func (c *Container) initTransport() {
	opts := []httpstream.Option{
		httpstream.WithLogger(c.logger),
		httpstream.WithResponseHeaderTimeout(c.config.Transport.Timeout),
	}
	if c.config.Transport.MaxLineSize > 0 {
		opts = append(opts, httpstream.WithMaxLineSize(c.config.Transport.MaxLineSize))
	}
	if c.validator != nil {
		opts = append(opts, httpstream.WithTrustHook(c.validator.Hook()))
	}
	c.transport = httpstream.NewClient(opts...)
}

func (c *Container) initStorage() error {
	if !c.config.Storage.Enabled {
		return nil
	}

	path, err := config.ExpandPath(c.config.Storage.Path)
	if err != nil {
		return err
	}

	conn, err := storage.NewConnection(path)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := conn.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db, err := conn.DB()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to get database handle: %w", err)
	}

	c.dbConn = conn
	c.transcripts = storage.NewTranscriptRepository(db)
	return nil
}

// NewOrchestrator creates a conversation orchestrator wired to the
// container's transport, counter, observability and transcript store.
// Extra options are applied last.
func (c *Container) NewOrchestrator(opts ...conversation.Option) *conversation.Orchestrator {
	base := []conversation.Option{
		conversation.WithEndpoint(c.config.Endpoint),
		conversation.WithBudget(c.config.Conversation.Budget),
		conversation.WithLogger(c.logger),
		conversation.WithTracer(c.tracer),
	}
	if c.config.Conversation.SystemText != "" {
		base = append(base, conversation.WithSystemText(c.config.Conversation.SystemText))
	}
	if c.transcripts != nil {
		base = append(base, conversation.WithTranscriptStore(c.transcripts))
	}
	return conversation.New(c.transport, c.counter, append(base, opts...)...)
}

// Close releases the database and flushes traces.
func (c *Container) Close() error {
	if c.tracer != nil {
		_ = c.tracer.Shutdown(context.Background())
	}

	if c.dbConn != nil {
		return c.dbConn.Close()
	}
	return nil
}

// Config returns the configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the logger.
func (c *Container) Logger() *logging.Logger {
	return c.logger
}

// Tracer returns the tracer.
func (c *Container) Tracer() *tracing.Tracer {
	return c.tracer
}

// TokenCounter returns the prompt token counter.
func (c *Container) TokenCounter() chat.TokenCounter {
	return c.counter
}

// Transport returns the streaming HTTP transport.
func (c *Container) Transport() *httpstream.Client {
	return c.transport
}

// Validator returns the pin validator, or nil when pinning is disabled.
func (c *Container) Validator() *pinning.Validator {
	return c.validator
}

// TranscriptRepository returns the transcript store, or nil when storage is
// disabled.
func (c *Container) TranscriptRepository() ports.TranscriptStoragePort {
	return c.transcripts
}
