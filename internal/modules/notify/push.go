// README: Firebase Cloud Messaging sink for driver devices.
package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// fcm maximum tokens per multicast call.
const multicastLimit = 500

type pushClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type PushSink struct {
	client pushClient
	// topic every active driver device subscribes to; empty disables topic sends.
	topic string
}

func NewPushSink(client pushClient, driversTopic string) *PushSink {
	return &PushSink{client: client, topic: driversTopic}
}

func (s *PushSink) Name() string { return "push" }

func (s *PushSink) Send(ctx context.Context, msg Message) error {
	if s.client == nil {
		return nil
	}
	note := &messaging.Notification{Title: msg.Subject, Body: msg.Body}
	data := pushData(msg.Intent)

	// A broadcast with nobody excluded goes to the topic in one call.
	if msg.Intent.Audience == AudienceDrivers && msg.Intent.Exclude == "" && s.topic != "" {
		_, err := s.client.Send(ctx, &messaging.Message{Topic: s.topic, Notification: note, Data: data})
		return err
	}

	var tokens []string
	for _, r := range msg.Recipients {
		if r.PushToken != "" {
			tokens = append(tokens, r.PushToken)
		}
	}
	failed := 0
	for start := 0; start < len(tokens); start += multicastLimit {
		end := min(start+multicastLimit, len(tokens))
		resp, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       tokens[start:end],
			Notification: note,
			Data:         data,
		})
		if err != nil {
			return err
		}
		failed += resp.FailureCount
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d push deliveries failed", failed, len(tokens))
	}
	return nil
}

func pushData(in Intent) map[string]string {
	data := map[string]string{"kind": string(in.Kind), "ride_id": string(in.RideID)}
	for k, v := range in.Payload {
		if _, ok := data[k]; !ok {
			data[k] = v
		}
	}
	return data
}
