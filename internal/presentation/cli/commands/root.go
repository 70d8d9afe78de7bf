// Package commands implements the CLI commands for streamchat.
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/streamchat/internal/application"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/config"
	"github.com/jbctechsolutions/streamchat/internal/presentation/cli/output"
)

// Version information - set at build time via ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// GlobalFlags holds the global CLI flags.
type GlobalFlags struct {
	ConfigFile string
	Output     string
	Verbose    bool
}

// AppContext holds the application runtime context.
type AppContext struct {
	Config    *config.Config
	Formatter *output.Formatter
	Flags     *GlobalFlags
	Container *application.Container
}

var (
	globalFlags GlobalFlags
	appCtx      *AppContext
	appCtxMu    sync.RWMutex // Protects appCtx for thread-safe access

	// interruptHandler gets first refusal on SIGINT. It returns true when
	// it consumed the signal.
	interruptHandler   func() bool
	interruptHandlerMu sync.Mutex
)

// NewRootCmd creates the root command for the streamchat CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "streamchat",
		Short: "Streamchat - streaming chat client with certificate pinning",
		Long: `Streamchat talks to a remote text-generation endpoint and prints the
reply as it streams in.

Key features:
  • Conversation history kept within a token budget
  • Replies streamed line by line as they are generated
  • Server certificates pinned against local DER files
  • Saved transcripts that can be resumed later`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip initialization for help, version, and completion commands
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return initializeApp()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigFile, "config", "c", "", "config file path (default: ~/.streamchat/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Output, "output", "o", "text", "output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewChatCmd())
	rootCmd.AddCommand(NewHistoryCmd())

	return rootCmd
}

// initializeApp initializes the application context.
func initializeApp() error {
	format, err := output.ParseFormat(globalFlags.Output)
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(
		output.WithFormat(format),
		output.WithColor(format != output.FormatJSON && output.IsColorSupported()),
	)

	cfg, err := loadConfig(globalFlags.ConfigFile)
	if err != nil {
		if globalFlags.Verbose {
			formatter.Warning("Could not load config: %v, using defaults", err)
		}
		cfg = config.NewDefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	container, err := application.NewContainer(cfg, globalFlags.Verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	appCtxMu.Lock()
	appCtx = &AppContext{
		Config:    cfg,
		Formatter: formatter,
		Flags:     &globalFlags,
		Container: container,
	}
	appCtxMu.Unlock()

	return nil
}

// loadConfig loads configuration from the specified file or default location.
func loadConfig(configPath string) (*config.Config, error) {
	loader, err := config.NewLoader("")
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}

	return loader.Load(configPath)
}

// GetAppContext returns the current application context.
// Returns nil if the app hasn't been initialized.
func GetAppContext() *AppContext {
	appCtxMu.RLock()
	defer appCtxMu.RUnlock()
	return appCtx
}

// GetFormatter returns the output formatter.
// Creates a default formatter if app context is not initialized.
func GetFormatter() *output.Formatter {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()

	if ctx != nil {
		return ctx.Formatter
	}
	return output.NewFormatter()
}

// GetContainer returns the application container.
// Returns nil if the app hasn't been initialized.
func GetContainer() *application.Container {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()

	if ctx != nil {
		return ctx.Container
	}
	return nil
}

// setInterruptHandler installs fn as the SIGINT handler and returns a
// function restoring the previous one.
func setInterruptHandler(fn func() bool) (restore func()) {
	interruptHandlerMu.Lock()
	prev := interruptHandler
	interruptHandler = fn
	interruptHandlerMu.Unlock()

	return func() {
		interruptHandlerMu.Lock()
		interruptHandler = prev
		interruptHandlerMu.Unlock()
	}
}

func handleInterrupt() bool {
	interruptHandlerMu.Lock()
	fn := interruptHandler
	interruptHandlerMu.Unlock()

	return fn != nil && fn()
}

// Shutdown closes the container and releases its resources.
func Shutdown() {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()

	if appCtx != nil && appCtx.Container != nil {
		_ = appCtx.Container.Close()
		appCtx = nil
	}
}

// Execute runs the root command with graceful shutdown support.
func Execute() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		rootCmd := NewRootCmd()
		errChan <- rootCmd.Execute()
	}()

	for {
		select {
		case err := <-errChan:
			Shutdown()
			if err != nil {
				GetFormatter().Error("%s", err.Error())
				os.Exit(1)
			}
			return
		case sig := <-sigChan:
			// Ctrl-C while a reply streams only stops that reply.
			if sig == os.Interrupt && handleInterrupt() {
				continue
			}
			GetFormatter().Warning("Received signal %v, shutting down...", sig)
			Shutdown()
			os.Exit(130) // Standard exit code for SIGINT
		}
	}
}
