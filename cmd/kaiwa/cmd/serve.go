package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kaiwa/src/config"
	"kaiwa/src/database"
	"kaiwa/src/server"
)

var (
	listenAddr string
	ollamaURL  string
	modelName  string
	personaDef string
	usageDB    bool
	verbose    bool
)

// serveCmd runs the HTTP relay until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the streaming chat relay",
	Long: `Start the HTTP server. GET /chat?prompt=... streams the persona-flavored
reply as chunked text/plain; GET / serves the landing page.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default :8000)")
	serveCmd.Flags().StringVar(&ollamaURL, "ollama-url", "", "Ollama base URL (default http://localhost:11434)")
	serveCmd.Flags().StringVar(&modelName, "model", "", "generation model (default mistral)")
	serveCmd.Flags().StringVar(&personaDef, "persona", "", "default persona profile")
	serveCmd.Flags().BoolVar(&usageDB, "usage-db", false, "record per-request usage in the local database")
	serveCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("ollama.url", serveCmd.Flags().Lookup("ollama-url"))
	viper.BindPFlag("ollama.model", serveCmd.Flags().Lookup("model"))
	viper.BindPFlag("persona.default", serveCmd.Flags().Lookup("persona"))
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	applyOverrides(settings)

	if err := config.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create config directories: %w", err)
	}

	zapConfig := zap.NewProductionConfig()
	if verbose {
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	var store *database.UsageStore
	if settings.Usage.Enabled {
		path := settings.Usage.Path
		if path == "" {
			path = config.DatabasePath()
		}
		store, err = database.NewUsageStore(path)
		if err != nil {
			return fmt.Errorf("failed to open usage store: %w", err)
		}
		defer store.Close()
		logger.Info("usage store enabled", zap.String("path", path))
	}

	srv := server.New(settings, store, logger)

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// applyOverrides layers viper-bound flags and env vars over file settings.
func applyOverrides(settings *config.Settings) {
	if v := viper.GetString("server.listen"); v != "" {
		settings.Server.Listen = v
	}
	if v := viper.GetString("ollama.url"); v != "" {
		settings.Ollama.URL = v
	}
	if v := viper.GetString("ollama.model"); v != "" {
		settings.Ollama.Model = v
	}
	if v := viper.GetString("persona.default"); v != "" {
		settings.Persona.Default = v
	}
	if usageDB {
		settings.Usage.Enabled = true
	}
}
