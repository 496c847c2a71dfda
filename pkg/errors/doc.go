// Package errors provides structured error handling with error codes for the
// recovery and trusted-device services.
//
// Every failure that crosses a service boundary is an *Error carrying one of
// the codes below. Handlers turn it into an HTTP status with HTTPStatusCode and
// render the message in the JSON envelope.
//
// # Error Codes
//
//   - ErrCodeNotAuthenticated: no authenticated user on the request
//   - ErrCodeNotFound: the referenced record does not exist
//   - ErrCodeForbidden: the record belongs to another user
//   - ErrCodeInvalidToken: no pending recovery request matches the token
//   - ErrCodeTokenExpired: the recovery request expired before use
//   - ErrCodeInvalidSession: the recovery request is not in the required state
//   - ErrCodeTooManyAttempts: the verification attempt cap was reached
//   - ErrCodeValidation: malformed input
//   - ErrCodeStorage: the database or another collaborator failed
//
// # Basic Usage
//
//	err := errors.New(errors.ErrCodeInvalidToken, "invalid recovery token")
//	err := errors.Storage(dbErr, "failed to load recovery request")
//	err := errors.Validation("email", "is required")
//
//	if errors.IsCode(err, errors.ErrCodeTokenExpired) {
//		// ask the user to start again
//	}
//
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
package errors
