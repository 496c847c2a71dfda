// Package notification delivers notices such as recovery links over email
// (SMTP via go-mail) and SMS (Twilio).
//
// A NotificationManager maps each NotificationSystem to a Notifier and each
// (NoticeType, NotificationSystem) pair to a NoticeTemplate:
//
//	nm, err := notification.NewNotificationManagerWithOptions(
//	    notification.WithSMTP(smtpConfig),
//	    notification.WithTwilio(twilioConfig),
//	    notification.WithRecoveryTemplates(),
//	)
//	err = nm.Send(ctx, notification.RecoveryLinkNotice, notification.EmailSystem, notification.NotificationData{
//	    To:   "user@example.com",
//	    Data: map[string]string{"Link": link, "ExpiresIn": "24 hours"},
//	})
//
// Templates are rendered with the Data map; a missing key is an error.
package notification
