package config

import (
	"github.com/tendant/simple-recovery/pkg/notification"
)

// EmailConfig holds SMTP settings for recovery link delivery. Email delivery
// is disabled when EMAIL_HOST is empty.
type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:""`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME"`
	Password string `env:"EMAIL_PASSWORD"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

func (e EmailConfig) IsConfigured() bool {
	return e.Host != ""
}

// ToSMTPConfig converts the config to a notification.SMTPConfig
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

func (e EmailConfig) validate() ValidationErrors {
	if !e.IsConfigured() {
		return nil
	}
	return CollectErrors(
		RequireValidPort("EMAIL_PORT", e.Port),
		RequireNonEmpty("EMAIL_FROM", e.From),
	)
}

// TwilioConfig holds Twilio SMS configuration
type TwilioConfig struct {
	TwilioAccountSid string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string `env:"TWILIO_FROM"`
}

// ToNotificationTwilioConfig converts the config to a notification.TwilioConfig
func (t TwilioConfig) ToNotificationTwilioConfig() notification.TwilioConfig {
	return notification.TwilioConfig{
		TwilioAccountSid: t.TwilioAccountSid,
		TwilioAuthToken:  t.TwilioAuthToken,
		TwilioFrom:       t.TwilioFrom,
	}
}

// IsConfigured returns true if Twilio is configured
func (t TwilioConfig) IsConfigured() bool {
	return t.TwilioAccountSid != "" && t.TwilioAuthToken != "" && t.TwilioFrom != ""
}
