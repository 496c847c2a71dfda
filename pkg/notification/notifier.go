package notification

import "context"

// NoticeType names a kind of message, e.g. a recovery link
type NoticeType string

const (
	RecoveryLinkNotice NoticeType = "recovery_link"
)

// NotificationSystem is a delivery channel
type NotificationSystem string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"
)

type NotificationData struct {
	To   string            // email address or E.164 phone number
	Data map[string]string // template values
}

// NoticeTemplate holds the unparsed templates for one notice on one system
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
