// README: AWS session and the SES/SNS clients behind the email and SMS sinks.
package infra

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/sns"
)

// NewAWSSession uses the default credential chain (env, shared config, instance role).
func NewAWSSession(region string) (*session.Session, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return sess, nil
}

func NewSES(sess *session.Session) *ses.SES { return ses.New(sess) }

func NewSNS(sess *session.Session) *sns.SNS { return sns.New(sess) }
