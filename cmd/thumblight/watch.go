package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ayusman/thumblight/internal/app"
	"github.com/ayusman/thumblight/internal/config"
	"github.com/ayusman/thumblight/internal/display"
	"github.com/ayusman/thumblight/internal/logging"
	"github.com/ayusman/thumblight/internal/server"
)

var (
	watchURL        string
	watchStreamAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the gesture publisher headless until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(config.RolePublisher)
		if err != nil {
			return err
		}
		if watchURL != "" {
			cfg.Camera.URL = watchURL
		}

		session, err := newPublisher(cfg, log)
		if err != nil {
			return err
		}
		defer session.Close()

		det := newDetector(cfg, logging.Component(log, "detector"))
		defer det.Close()

		notifier := logNotifier(logging.Component(log, "events"))

		var disp app.Display = display.Discard{}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if watchStreamAddr != "" {
			mjpeg := display.NewMJPEG()
			disp = mjpeg
			srv := server.New(server.Config{
				Stream:     mjpeg,
				Snapshot:   mjpeg.ServeSnapshot,
				DefaultURL: cfg.Camera.URL,
				Log:        logging.Component(log, "http"),
			})
			go func() {
				if err := srv.Run(ctx, watchStreamAddr); err != nil {
					log.WithError(err).Error("stream server failed")
				}
			}()
		}

		go forwardBrokerEvents(ctx, session, notifier)

		a := app.New(loopConfig(cfg), app.Deps{
			Sources:   snapshotSources(cfg),
			Detector:  det,
			Publisher: session,
			Display:   disp,
			Notifier:  notifier,
			Log:       logging.Component(log, "loop"),
		})

		err = a.Run(ctx, cfg.Camera.URL)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "camera snapshot URL (default "+config.DefaultCameraURL+")")
	watchCmd.Flags().StringVar(&watchStreamAddr, "stream-addr", "", "serve the annotated frames as MJPEG on this address")
}
