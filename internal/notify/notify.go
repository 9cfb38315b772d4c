// Package notify delivers completed handovers to the sales channel.
package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsses "github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"

	stderrors "github.com/raphaelfeliz/chat-nov9/internal/common/errors"
	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
)

// Lead carries what the sales team needs to pick up a handover.
type Lead struct {
	SessionID    string
	Name         string
	Email        string
	Phone        string
	ProductLabel string
}

// Notifier is invoked when a handover attempt completes with contact info on
// file. Delivery is best-effort; a failure never blocks the conversation.
type Notifier interface {
	HandoverCompleted(ctx context.Context, lead Lead) error
}

// Noop discards notifications; used when no channel is configured.
type Noop struct{}

func (Noop) HandoverCompleted(context.Context, Lead) error { return nil }

// snsAPI and sesAPI are the SDK slices the notifiers call; tests stub them.
type snsAPI interface {
	Publish(ctx context.Context, in *awssns.PublishInput, opts ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

type sesAPI interface {
	SendEmail(ctx context.Context, in *awsses.SendEmailInput, opts ...func(*awsses.Options)) (*awsses.SendEmailOutput, error)
}

// SNSNotifier publishes leads to an SNS topic.
type SNSNotifier struct {
	client   snsAPI
	topicARN string
}

// NewSNSNotifier builds the topic publisher from the shared AWS config
// chain for the region.
func NewSNSNotifier(ctx context.Context, region, topicARN string) (*SNSNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSNotifier{client: awssns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

func (n *SNSNotifier) HandoverCompleted(ctx context.Context, lead Lead) error {
	msg := formatLead(lead)
	subject := "Configurator handover: " + displayName(lead)
	_, err := n.client.Publish(ctx, &awssns.PublishInput{
		TopicArn: &n.topicARN,
		Subject:  &subject,
		Message:  &msg,
	})
	if err != nil {
		return stderrors.Wrap(stderrors.ErrCodeNotifyFailed, "sns publish failed", err)
	}
	return nil
}

// SESNotifier emails leads to the sales inbox.
type SESNotifier struct {
	client sesAPI
	from   string
	to     string
}

// NewSESNotifier builds the email sender from the shared AWS config chain
// for the region.
func NewSESNotifier(ctx context.Context, region, from, to string) (*SESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESNotifier{client: awsses.NewFromConfig(cfg), from: from, to: to}, nil
}

func (n *SESNotifier) HandoverCompleted(ctx context.Context, lead Lead) error {
	subject := "Configurator handover: " + displayName(lead)
	body := formatLead(lead)
	_, err := n.client.SendEmail(ctx, &awsses.SendEmailInput{
		Source: &n.from,
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: &subject},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: &body},
			},
		},
	})
	if err != nil {
		return stderrors.Wrap(stderrors.ErrCodeNotifyFailed, "ses send failed", err)
	}
	return nil
}

// Fanout delivers to every configured channel and logs failures without
// short-circuiting.
type Fanout struct {
	targets []Notifier
	log     logger.Logger
}

func NewFanout(log logger.Logger, targets ...Notifier) *Fanout {
	return &Fanout{targets: targets, log: log}
}

func (f *Fanout) HandoverCompleted(ctx context.Context, lead Lead) error {
	var lastErr error
	for _, t := range f.targets {
		if err := t.HandoverCompleted(ctx, lead); err != nil {
			lastErr = err
			f.log.Error("handover notification failed", map[string]interface{}{
				"session": lead.SessionID,
				"error":   err.Error(),
			})
		}
	}
	return lastErr
}

func displayName(lead Lead) string {
	if lead.Name != "" {
		return lead.Name
	}
	return "anonymous visitor"
}

func formatLead(lead Lead) string {
	return fmt.Sprintf(
		"Session: %s\nName: %s\nEmail: %s\nPhone: %s\nProduct: %s\n",
		lead.SessionID, lead.Name, lead.Email, lead.Phone, lead.ProductLabel,
	)
}
