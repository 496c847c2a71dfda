package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioConfig struct {
	TwilioAccountSid string
	TwilioAuthToken  string
	TwilioFrom       string
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type SMSNotifier struct {
	TwilioConfig TwilioConfig
	messages     messageCreator
}

func NewSMSNotifier(config TwilioConfig) *SMSNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.TwilioAccountSid,
		Password: config.TwilioAuthToken,
	})
	return &SMSNotifier{TwilioConfig: config, messages: client.Api}
}

// Send renders the text template as the message body. The twilio client
// has no context support, so ctx is only checked before the call.
func (s *SMSNotifier) Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("SMS notification requires 'To'")
	}
	body, err := renderText(string(noticeType), template.Text, notification.Data)
	if err != nil {
		return fmt.Errorf("failed to render sms template: %w", err)
	}
	if body == "" {
		return fmt.Errorf("SMS notification requires a text body")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(notification.To)
	params.SetFrom(s.TwilioConfig.TwilioFrom)
	params.SetBody(body)

	resp, err := s.messages.CreateMessage(params)
	if err != nil {
		slog.Error("Failed to send sms", "notice_type", noticeType, "err", err)
		return err
	}
	if resp != nil && resp.Sid != nil {
		slog.Info("SMS sent", "notice_type", noticeType, "sid", *resp.Sid)
	}
	return nil
}
