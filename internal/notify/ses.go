package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// emailSender is the slice of the SES client the transport needs.
type emailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport mails each chunk to a fixed recipient through Amazon SES.
type SESTransport struct {
	client  emailSender
	from    string
	to      string
	subject string
}

// NewSESTransport loads the default AWS credential chain for region.
func NewSESTransport(ctx context.Context, region, from, to, subject string) (*SESTransport, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESTransport(sesv2.NewFromConfig(cfg), from, to, subject), nil
}

func newSESTransport(client emailSender, from, to, subject string) *SESTransport {
	if subject == "" {
		subject = "Survey result"
	}
	return &SESTransport{client: client, from: from, to: to, subject: subject}
}

func (s *SESTransport) Deliver(ctx context.Context, text string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{s.to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(s.subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(strings.ReplaceAll(text, "\n", "<br>\n")),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", s.to, err)
	}
	return nil
}
