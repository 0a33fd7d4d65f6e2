// README: Amazon SES email sink.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
)

type EmailSink struct {
	client sesiface.SESAPI
	from   string
}

func NewEmailSink(client sesiface.SESAPI, from string) *EmailSink {
	return &EmailSink{client: client, from: from}
}

func (s *EmailSink) Name() string { return "email" }

// Send mails each recipient separately so addresses are never shared.
func (s *EmailSink) Send(ctx context.Context, msg Message) error {
	if s.client == nil || s.from == "" {
		return nil
	}
	var errs []error
	for _, r := range msg.Recipients {
		if r.Email == "" {
			continue
		}
		_, err := s.client.SendEmailWithContext(ctx, &ses.SendEmailInput{
			Source:      aws.String(s.from),
			Destination: &ses.Destination{ToAddresses: aws.StringSlice([]string{r.Email})},
			Message: &ses.Message{
				Subject: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(msg.Subject)},
				Body: &ses.Body{
					Text: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(msg.Body)},
				},
			},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Email, err))
		}
	}
	return errors.Join(errs...)
}
