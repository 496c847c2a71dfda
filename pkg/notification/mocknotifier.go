package notification

import (
	"context"
	"sync"
)

type SentNotice struct {
	NoticeType NoticeType
	Data       NotificationData
	Template   NoticeTemplate
}

// MockNotifier records every notice it is asked to send
type MockNotifier struct {
	mu   sync.Mutex
	sent []SentNotice
	Err  error
}

func (m *MockNotifier) Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentNotice{NoticeType: noticeType, Data: notification, Template: template})
	return nil
}

func (m *MockNotifier) Sent() []SentNotice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentNotice, len(m.sent))
	copy(out, m.sent)
	return out
}
