// README: Builds the notification sinks enabled by config (FCM push, SES email, SNS SMS, RabbitMQ events).
package main

import (
	"context"
	"log/slog"

	firebase "firebase.google.com/go/v4"

	"ridebook/internal/config"
	"ridebook/internal/infra"
	"ridebook/internal/modules/notify"
)

func buildSinks(ctx context.Context, cfg config.Config, app *firebase.App, log *slog.Logger) ([]notify.Sink, func(), error) {
	var (
		sinks   []notify.Sink
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	fcm, err := infra.NewMessaging(ctx, app)
	if err != nil {
		return nil, closeAll, err
	}
	sinks = append(sinks, notify.NewPushSink(fcm, cfg.Firebase.DriversTopic))

	if cfg.AWS.EmailFrom != "" || cfg.AWS.SMSEnabled {
		sess, err := infra.NewAWSSession(cfg.AWS.Region)
		if err != nil {
			return nil, closeAll, err
		}
		if cfg.AWS.EmailFrom != "" {
			sinks = append(sinks, notify.NewEmailSink(infra.NewSES(sess), cfg.AWS.EmailFrom))
		}
		if cfg.AWS.SMSEnabled {
			sinks = append(sinks, notify.NewSMSSink(infra.NewSNS(sess)))
		}
	}

	if cfg.RabbitMQ.URL != "" {
		broker, err := infra.NewBroker(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, func() {
			if err := broker.Close(); err != nil {
				log.Warn("close rabbitmq", "error", err)
			}
		})
		sinks = append(sinks, notify.NewBrokerSink(broker.Channel, cfg.RabbitMQ.Exchange))
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	log.Info("notification sinks ready", "sinks", names)
	return sinks, closeAll, nil
}
