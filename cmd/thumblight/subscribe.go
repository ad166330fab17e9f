package main

import (
	"github.com/spf13/cobra"

	"github.com/ayusman/thumblight/internal/broker"
	"github.com/ayusman/thumblight/internal/config"
	"github.com/ayusman/thumblight/internal/consumption"
	"github.com/ayusman/thumblight/internal/logging"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Log energy consumption messages from the broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(config.RoleSubscriber)
		if err != nil {
			return err
		}

		session := broker.New(broker.OptionsFromConfig(cfg.Broker, ""), logging.Component(log, "broker"))
		defer session.Close()

		handler := consumption.NewHandler(cfg.Topics.ConsumptionField, logging.Component(log, "consumption"))
		if err := session.Subscribe(cfg.Topics.Consumption, 0, handler.MessageHandler()); err != nil {
			return err
		}
		if err := session.Start(); err != nil {
			return err
		}
		log.WithField("topic", cfg.Topics.Consumption).
			WithField("field", handler.Field()).
			Info("waiting for consumption messages")

		<-cmd.Context().Done()

		stats := handler.Stats()
		log.WithField("received", stats.Received).
			WithField("accepted", stats.Accepted).
			WithField("rejected", stats.Rejected).
			Info("subscriber stopped")
		return nil
	},
}
