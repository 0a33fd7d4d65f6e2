// README: Channel sink tests with stub FCM, SES, SNS and AMQP clients.
package notify

import (
	"context"
	"encoding/json"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	amqp "github.com/rabbitmq/amqp091-go"
)

type stubPush struct {
	single []*messaging.Message
	multi  []*messaging.MulticastMessage
	fail   int
}

func (s *stubPush) Send(_ context.Context, msg *messaging.Message) (string, error) {
	s.single = append(s.single, msg)
	return "projects/x/messages/1", nil
}

func (s *stubPush) SendEachForMulticast(_ context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	s.multi = append(s.multi, msg)
	return &messaging.BatchResponse{SuccessCount: len(msg.Tokens) - s.fail, FailureCount: s.fail}, nil
}

type stubSES struct {
	sesiface.SESAPI
	inputs []*ses.SendEmailInput
}

func (s *stubSES) SendEmailWithContext(_ aws.Context, in *ses.SendEmailInput, _ ...request.Option) (*ses.SendEmailOutput, error) {
	s.inputs = append(s.inputs, in)
	return &ses.SendEmailOutput{MessageId: aws.String("m1")}, nil
}

type stubSNS struct {
	snsiface.SNSAPI
	inputs []*sns.PublishInput
}

func (s *stubSNS) PublishWithContext(_ aws.Context, in *sns.PublishInput, _ ...request.Option) (*sns.PublishOutput, error) {
	s.inputs = append(s.inputs, in)
	return &sns.PublishOutput{MessageId: aws.String("s1")}, nil
}

type stubChannel struct {
	exchange, key string
	msg           amqp.Publishing
}

func (s *stubChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	s.exchange, s.key, s.msg = exchange, key, msg
	return nil
}

func TestPushSinkUsesTopicForFullBroadcast(t *testing.T) {
	client := &stubPush{}
	sink := NewPushSink(client, "drivers")

	err := sink.Send(context.Background(), Message{
		Intent:     Intent{Audience: AudienceDrivers, Kind: KindRideAvailable, RideID: "r1"},
		Recipients: []Recipient{{ID: "d1", PushToken: "t1"}},
		Subject:    "New ride available",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(client.single) != 1 || client.single[0].Topic != "drivers" {
		t.Fatalf("expected one topic message, got %+v", client.single)
	}
	if client.single[0].Data["ride_id"] != "r1" {
		t.Fatalf("ride id missing from data payload")
	}
	if len(client.multi) != 0 {
		t.Fatalf("unexpected multicast")
	}
}

func TestPushSinkMulticastsToTokens(t *testing.T) {
	client := &stubPush{fail: 1}
	sink := NewPushSink(client, "drivers")

	err := sink.Send(context.Background(), Message{
		Intent:     Intent{Audience: AudienceDrivers, Kind: KindRideTaken, RideID: "r1", Exclude: "d1"},
		Recipients: []Recipient{{ID: "d2", PushToken: "t2"}, {ID: "d3"}, {ID: "d4", PushToken: "t4"}},
	})
	if err == nil {
		t.Fatalf("expected partial failure error")
	}
	if len(client.multi) != 1 || len(client.multi[0].Tokens) != 2 {
		t.Fatalf("expected one multicast with 2 tokens, got %+v", client.multi)
	}
}

func TestEmailSinkSendsOnePerRecipient(t *testing.T) {
	client := &stubSES{}
	sink := NewEmailSink(client, "rides@example.com")

	err := sink.Send(context.Background(), Message{
		Intent:     Intent{Audience: AudienceAdmin, Kind: KindRideDeleted},
		Recipients: []Recipient{{Email: "a@example.com"}, {Phone: "+1555"}, {Email: "b@example.com"}},
		Subject:    "Ride deleted",
		Body:       "gone",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(client.inputs) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(client.inputs))
	}
	if got := aws.StringValue(client.inputs[1].Destination.ToAddresses[0]); got != "b@example.com" {
		t.Fatalf("unexpected destination %s", got)
	}
	if got := aws.StringValue(client.inputs[0].Source); got != "rides@example.com" {
		t.Fatalf("unexpected source %s", got)
	}
}

func TestEmailSinkDisabledWithoutSender(t *testing.T) {
	client := &stubSES{}
	if err := NewEmailSink(client, "").Send(context.Background(), Message{
		Recipients: []Recipient{{Email: "a@example.com"}},
	}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(client.inputs) != 0 {
		t.Fatalf("email sent without a sender address")
	}
}

func TestSMSSinkSkipsBroadcasts(t *testing.T) {
	client := &stubSNS{}
	sink := NewSMSSink(client)
	ctx := context.Background()

	_ = sink.Send(ctx, Message{
		Intent:     Intent{Audience: AudienceDrivers, Kind: KindRideAvailable},
		Recipients: []Recipient{{Phone: "+15550001"}},
	})
	if len(client.inputs) != 0 {
		t.Fatalf("broadcast should not be texted")
	}

	if err := sink.Send(ctx, Message{
		Intent:     Intent{Audience: AudienceCustomer, Kind: KindPickupConfirmed},
		Recipients: []Recipient{{Phone: "+15550002"}},
		Subject:    "Pickup confirmed",
		Body:       "see you soon",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(client.inputs) != 1 || aws.StringValue(client.inputs[0].PhoneNumber) != "+15550002" {
		t.Fatalf("unexpected sms inputs %+v", client.inputs)
	}
}

func TestBrokerSinkPublishesJSON(t *testing.T) {
	ch := &stubChannel{}
	sink := NewBrokerSink(ch, "ride_events")

	err := sink.Send(context.Background(), Message{
		Intent:  Intent{Audience: AudienceCustomer, Kind: KindRideAccepted, RideID: "r9"},
		Subject: "Your ride has been accepted",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ch.exchange != "ride_events" || ch.key != "ride.customer.ride_accepted" {
		t.Fatalf("unexpected exchange/key %s %s", ch.exchange, ch.key)
	}
	if ch.msg.DeliveryMode != amqp.Persistent || ch.msg.ContentType != "application/json" {
		t.Fatalf("unexpected publishing %+v", ch.msg)
	}
	var got map[string]any
	if err := json.Unmarshal(ch.msg.Body, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got["ride_id"] != "r9" || got["kind"] != "ride_accepted" {
		t.Fatalf("unexpected body %v", got)
	}
}
