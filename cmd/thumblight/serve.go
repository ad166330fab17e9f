package main

import (
	"github.com/spf13/cobra"

	"github.com/ayusman/thumblight/internal/app"
	"github.com/ayusman/thumblight/internal/config"
	"github.com/ayusman/thumblight/internal/display"
	"github.com/ayusman/thumblight/internal/logging"
	"github.com/ayusman/thumblight/internal/server"
)

var (
	serveAddr      string
	serveAutoStart bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gesture publisher with the web dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(config.RolePublisher)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.HTTP.Addr = serveAddr
		}

		session, err := newPublisher(cfg, log)
		if err != nil {
			return err
		}
		defer session.Close()

		det := newDetector(cfg, logging.Component(log, "detector"))
		defer det.Close()

		disp := display.NewMJPEG()
		hub := server.NewEventHub(logging.Component(log, "events"))

		a := app.New(loopConfig(cfg), app.Deps{
			Sources:   snapshotSources(cfg),
			Detector:  det,
			Publisher: session,
			Display:   disp,
			Notifier:  hub,
			Log:       logging.Component(log, "loop"),
		})
		defer a.Stop()

		go forwardBrokerEvents(cmd.Context(), session, hub)

		if serveAutoStart {
			if err := a.Start(cfg.Camera.URL); err != nil {
				return err
			}
		}

		srv := server.New(server.Config{
			Controller: a,
			Stream:     disp,
			Snapshot:   disp.ServeSnapshot,
			Events:     hub,
			DefaultURL: cfg.Camera.URL,
			Log:        logging.Component(log, "http"),
		})
		return srv.Run(cmd.Context(), cfg.HTTP.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "dashboard listen address (default "+config.DefaultHTTPAddr+")")
	serveCmd.Flags().BoolVar(&serveAutoStart, "start", false, "start monitoring the configured camera immediately")
}
