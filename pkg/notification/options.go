package notification

import (
	"embed"
	"fmt"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) (string, error) {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", filename, err)
	}
	return string(content), nil
}

// NotificationManagerOption configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

func WithTwilio(config TwilioConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(SMSSystem, NewSMSNotifier(config))
		return nil
	}
}

// WithNotifier registers an arbitrary notifier, e.g. a MockNotifier
func WithNotifier(system NotificationSystem, notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithRecoveryTemplates registers the recovery link templates for email and SMS
func WithRecoveryTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		html, err := loadTemplate("templates/email/recovery_link.html")
		if err != nil {
			return err
		}
		text, err := loadTemplate("templates/email/recovery_link.txt")
		if err != nil {
			return err
		}
		if err := nm.RegisterNotification(RecoveryLinkNotice, EmailSystem, NoticeTemplate{
			Subject: "Recover your account",
			Text:    text,
			Html:    html,
		}); err != nil {
			return err
		}

		sms, err := loadTemplate("templates/sms/recovery_link.txt")
		if err != nil {
			return err
		}
		return nm.RegisterNotification(RecoveryLinkNotice, SMSSystem, NoticeTemplate{
			Subject: "Recover your account",
			Text:    sms,
		})
	}
}

func NewNotificationManagerWithOptions(opts ...NotificationManagerOption) (*NotificationManager, error) {
	nm := NewNotificationManager()
	for _, opt := range opts {
		if err := opt(nm); err != nil {
			return nil, err
		}
	}
	return nm, nil
}
