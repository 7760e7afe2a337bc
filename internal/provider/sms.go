package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of the SNS client used by SNSTexter.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSTexter struct {
	api SNSAPI
}

func NewSNSTexter(api SNSAPI) *SNSTexter {
	return &SNSTexter{api: api}
}

// SendSMS publishes a transactional SMS. Messages longer than one segment
// are left to SNS to split.
func (t *SNSTexter) SendSMS(ctx context.Context, phone, message string) error {
	_, err := t.api.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish sms: %w", err)
	}
	return nil
}

var _ Texter = (*SNSTexter)(nil)
