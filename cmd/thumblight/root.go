package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/thumblight/internal/app"
	"github.com/ayusman/thumblight/internal/broker"
	"github.com/ayusman/thumblight/internal/capture"
	"github.com/ayusman/thumblight/internal/config"
	"github.com/ayusman/thumblight/internal/detector"
	"github.com/ayusman/thumblight/internal/logging"
)

// Version is the application version.
const Version = "0.1.0"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:     "thumblight",
	Short:   "Thumbs-up light switch over MQTT, with an energy dashboard",
	Version: Version,
	// Errors are logged by the commands themselves.
	SilenceUsage: true,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.AddCommand(serveCmd, watchCmd, subscribeCmd)
}

// setup loads configuration for role and builds the logger.
func setup(role config.Role) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath, role)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// newDetector prefers the MediaPipe model and falls back to the mock
// detector, which never reports hands.
func newDetector(cfg *config.Config, log logrus.FieldLogger) detector.Detector {
	dc := detector.DefaultConfig()
	dc.ScriptPath = cfg.Detector.Script
	dc.PythonPath = cfg.Detector.Python

	mp, err := detector.NewMediaPipeDetector(dc)
	if err != nil {
		log.WithError(err).Warn("MediaPipe not available, using mock detector")
		return detector.NewMockDetector()
	}
	log.Info("using MediaPipe hand detection")
	return mp
}

// newPublisher creates and starts the control publisher session.
func newPublisher(cfg *config.Config, log logrus.FieldLogger) (*broker.Session, error) {
	s := broker.New(broker.OptionsFromConfig(cfg.Broker, cfg.Topics.Availability), logging.Component(log, "broker"))
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

func loopConfig(cfg *config.Config) app.LoopConfig {
	return app.LoopConfig{
		ControlTopic: cfg.Topics.Control,
		FetchTimeout: cfg.Camera.FetchTimeout,
		FetchRetries: cfg.Camera.FetchRetries,
		RetryBackoff: cfg.Camera.RetryBackoff,
		PollInterval: cfg.Camera.PollInterval,
	}
}

func snapshotSources(cfg *config.Config) capture.SourceFactory {
	return func(url string) capture.Source {
		return capture.NewSnapshotSource(url, capture.WithTimeout(cfg.Camera.FetchTimeout))
	}
}

// logNotifier writes loop events to the log.
func logNotifier(log logrus.FieldLogger) app.Notifier {
	return app.NotifierFunc(func(e app.Event) {
		switch e.Level {
		case app.LevelError:
			log.Error(e.Message)
		case app.LevelWarning:
			log.Warn(e.Message)
		default:
			log.Info(e.Message)
		}
	})
}

// forwardBrokerEvents turns session lifecycle events into loop events until
// ctx is done or the session closes.
func forwardBrokerEvents(ctx context.Context, s *broker.Session, n app.Notifier) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.Events():
			switch e.Type {
			case broker.EventConnected:
				n.Notify(app.Event{Level: app.LevelSuccess, Message: "Conectado ao MQTT Broker com sucesso.", Time: e.Time})
			case broker.EventConnectionLost:
				n.Notify(app.Event{Level: app.LevelWarning, Message: "Desconectado do MQTT Broker.", Time: e.Time})
			case broker.EventClosed:
				return
			}
		}
	}
}
