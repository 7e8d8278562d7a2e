package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

const charsetUTF8 = "UTF-8"

var loadDefaultAWSConfig = config.LoadDefaultConfig

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends HTML email through Amazon SES
type SESSender struct {
	client sesAPI
	from   string
}

func NewSESSender(client sesAPI, from string) *SESSender {
	return &SESSender{client: client, from: from}
}

// NewSESClient builds an SES client for region. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain applies.
func NewSESClient(ctx context.Context, region, accessKeyID, secretAccessKey string) (*sesv2.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sesv2.NewFromConfig(cfg), nil
}

func (s *SESSender) SendEmail(ctx context.Context, to, subject, html string) error {
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String(charsetUTF8)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(html), Charset: aws.String(charsetUTF8)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}
