// Package audit records security-relevant authentication events.
//
// The log is append-only. Every event carries an optional user id (nil before
// the account is known), a status, the caller's IP address and user agent, and
// a typed details payload. Each event type has its own details struct and the
// payload is stored as JSON and decoded back into that struct on read.
//
// Recording never fails the caller: storage errors are logged and dropped.
//
//	repo := audit.NewInMemAuditRepository()
//	svc := audit.NewAuditService(repo)
//	svc.Record(ctx, &userID, audit.StatusSuccess, rc, audit.DeviceTrustedDetails{DeviceID: id})
//
//	page, err := svc.ListUserEvents(ctx, audit.Query{UserID: userID, Page: 1, PageSize: 20})
package audit
