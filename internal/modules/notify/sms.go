// README: Amazon SNS text message sink.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
)

type SMSSink struct {
	client snsiface.SNSAPI
}

func NewSMSSink(client snsiface.SNSAPI) *SMSSink {
	return &SMSSink{client: client}
}

func (s *SMSSink) Name() string { return "sms" }

// Send texts direct recipients only; broadcasts to all drivers go out as push.
func (s *SMSSink) Send(ctx context.Context, msg Message) error {
	if s.client == nil || msg.Intent.Audience == AudienceDrivers {
		return nil
	}
	var errs []error
	for _, r := range msg.Recipients {
		if r.Phone == "" {
			continue
		}
		_, err := s.client.PublishWithContext(ctx, &sns.PublishInput{
			PhoneNumber: aws.String(r.Phone),
			Message:     aws.String(msg.Subject + ": " + msg.Body),
			MessageAttributes: map[string]*sns.MessageAttributeValue{
				"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
			},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Phone, err))
		}
	}
	return errors.Join(errs...)
}
