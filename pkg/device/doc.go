// Package device remembers trusted devices so repeat logins can skip
// secondary verification.
//
// # Overview
//
// The device package provides:
//   - Device fingerprinting from user agent, IP address and an optional client device id
//   - Trusting a device for a number of days, refreshing it when trusted again
//   - Trusted checks that ignore expired rows without deleting them
//   - Listing and removing a user's devices with ownership checks
//
// # Basic Usage
//
//	repo := device.NewPostgresDeviceRepository(pool)
//	service := device.NewDeviceService(
//		repo,
//		device.WithAuditRecorder(auditService),
//		device.WithTrustDays(30, 365),
//	)
//
//	rc := client.FromRequest(r)
//	status, err := service.IsTrusted(ctx, userID, rc)
//	if err == nil && status.Trusted {
//		// Skip secondary verification
//	}
//
// # Fingerprints
//
// A fingerprint is the SHA-256 of the user agent and IP address, plus the
// X-Device-ID header when the client sends one. It is coarse: a browser
// update or a network change produces a new fingerprint and the device has
// to be trusted again.
package device
