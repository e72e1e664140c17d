package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESNotifier sends events as plain-text emails through Amazon SES.
type SESNotifier struct {
	client *sesv2.Client
	sender string
}

// NewSESNotifier loads the default AWS credential chain (env vars, shared
// config). sender must be a verified SES identity.
func NewSESNotifier(ctx context.Context, region, sender string) (*SESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("notify.NewSESNotifier: load aws config: %w", err)
	}
	return &SESNotifier{client: sesv2.NewFromConfig(cfg), sender: sender}, nil
}

func (n *SESNotifier) Notify(ctx context.Context, ev Event) error {
	if ev.Recipient == "" {
		return nil
	}
	_, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.sender),
		Destination: &types.Destination{
			ToAddresses: []string{ev.Recipient},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(ev.Subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(ev.Body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notify.SESNotifier: send email: %w", err)
	}
	return nil
}
