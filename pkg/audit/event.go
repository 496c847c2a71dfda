package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened
type EventType string

const (
	EventRecoveryInitiated       EventType = "recovery_initiated"
	EventRecoveryTokenVerified   EventType = "recovery_token_verified"
	EventRecoveryAnswersVerified EventType = "recovery_answers_verified"
	EventPasswordResetSuccess    EventType = "password_reset_success"
	EventPasswordResetFailure    EventType = "password_reset_failure"

	EventRecoveryMethodAdded      EventType = "recovery_method_added"
	EventRecoveryMethodRemoved    EventType = "recovery_method_removed"
	EventRecoveryMethodPrimarySet EventType = "recovery_method_primary_set"

	EventDeviceTrusted     EventType = "device_trusted"
	EventDeviceRemoved     EventType = "device_removed"
	EventDevicesRemovedAll EventType = "devices_removed_all"
)

// KnownEventTypes lists every event type the log accepts in queries
var KnownEventTypes = []EventType{
	EventRecoveryInitiated,
	EventRecoveryTokenVerified,
	EventRecoveryAnswersVerified,
	EventPasswordResetSuccess,
	EventPasswordResetFailure,
	EventRecoveryMethodAdded,
	EventRecoveryMethodRemoved,
	EventRecoveryMethodPrimarySet,
	EventDeviceTrusted,
	EventDeviceRemoved,
	EventDevicesRemovedAll,
}

// IsValid reports whether t is a known event type
func (t EventType) IsValid() bool {
	for _, known := range KnownEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Status is the outcome of the audited action
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPending Status = "pending"
)

// Event is one immutable audit record
type Event struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	EventType EventType  `json:"eventType"`
	Status    Status     `json:"status"`
	IPAddress string     `json:"ipAddress"`
	UserAgent string     `json:"userAgent"`
	Details   Details    `json:"details,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Details is the event-specific payload. Each implementation belongs to
// exactly one event type.
type Details interface {
	EventType() EventType
}

// Reasons recorded on failure events
const (
	ReasonUnknownAccount   = "unknown_account"
	ReasonNoMethods        = "no_recovery_methods"
	ReasonRateLimited      = "rate_limited"
	ReasonTokenExpired     = "token_expired"
	ReasonIncorrectAnswers = "incorrect_answers"
	ReasonTooManyAttempts  = "too many attempts"
	ReasonIdentityStore    = "identity_store_error"
	ReasonCredentialReset  = "credential_reset"
)

type RecoveryInitiatedDetails struct {
	Email            string     `json:"email,omitempty"`
	RequestID        *uuid.UUID `json:"requestId,omitempty"`
	RecoveryMethodID *uuid.UUID `json:"recoveryMethodId,omitempty"`
	MethodType       string     `json:"methodType,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}

func (RecoveryInitiatedDetails) EventType() EventType { return EventRecoveryInitiated }

type RecoveryTokenVerifiedDetails struct {
	RequestID        uuid.UUID `json:"requestId"`
	RecoveryMethodID uuid.UUID `json:"recoveryMethodId"`
	MethodType       string    `json:"methodType,omitempty"`
	Reason           string    `json:"reason,omitempty"`
}

func (RecoveryTokenVerifiedDetails) EventType() EventType { return EventRecoveryTokenVerified }

type RecoveryAnswersVerifiedDetails struct {
	RequestID         uuid.UUID `json:"requestId"`
	Attempts          int       `json:"attempts"`
	AttemptsRemaining int       `json:"attemptsRemaining"`
	Reason            string    `json:"reason,omitempty"`
}

func (RecoveryAnswersVerifiedDetails) EventType() EventType { return EventRecoveryAnswersVerified }

type PasswordResetSuccessDetails struct {
	RequestID      uuid.UUID `json:"requestId"`
	DevicesRevoked int       `json:"devicesRevoked"`
}

func (PasswordResetSuccessDetails) EventType() EventType { return EventPasswordResetSuccess }

type PasswordResetFailureDetails struct {
	RequestID uuid.UUID `json:"requestId"`
	Reason    string    `json:"reason"`
}

func (PasswordResetFailureDetails) EventType() EventType { return EventPasswordResetFailure }

type RecoveryMethodAddedDetails struct {
	RecoveryMethodID uuid.UUID `json:"recoveryMethodId"`
	MethodType       string    `json:"methodType"`
	Replaced         bool      `json:"replaced"`
	QuestionCount    int       `json:"questionCount,omitempty"`
}

func (RecoveryMethodAddedDetails) EventType() EventType { return EventRecoveryMethodAdded }

type RecoveryMethodRemovedDetails struct {
	RecoveryMethodID uuid.UUID `json:"recoveryMethodId"`
	MethodType       string    `json:"methodType"`
}

func (RecoveryMethodRemovedDetails) EventType() EventType { return EventRecoveryMethodRemoved }

type RecoveryMethodPrimarySetDetails struct {
	RecoveryMethodID uuid.UUID `json:"recoveryMethodId"`
	MethodType       string    `json:"methodType"`
}

func (RecoveryMethodPrimarySetDetails) EventType() EventType { return EventRecoveryMethodPrimarySet }

type DeviceTrustedDetails struct {
	DeviceID   uuid.UUID `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Refreshed  bool      `json:"refreshed"`
}

func (DeviceTrustedDetails) EventType() EventType { return EventDeviceTrusted }

type DeviceRemovedDetails struct {
	DeviceID   uuid.UUID `json:"deviceId"`
	DeviceName string    `json:"deviceName,omitempty"`
}

func (DeviceRemovedDetails) EventType() EventType { return EventDeviceRemoved }

type DevicesRemovedAllDetails struct {
	Count  int    `json:"count"`
	Reason string `json:"reason,omitempty"`
}

func (DevicesRemovedAllDetails) EventType() EventType { return EventDevicesRemovedAll }

// RawDetails holds a payload whose event type is not known to this build
type RawDetails struct {
	Type EventType
	Raw  json.RawMessage
}

func (d RawDetails) EventType() EventType { return d.Type }

func (d RawDetails) MarshalJSON() ([]byte, error) {
	if len(d.Raw) == 0 {
		return []byte("null"), nil
	}
	return d.Raw, nil
}

// EncodeDetails serializes a details payload for storage
func EncodeDetails(d Details) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// DecodeDetails restores the concrete details struct for an event type
func DecodeDetails(eventType EventType, raw []byte) (Details, error) {
	var target Details
	switch eventType {
	case EventRecoveryInitiated:
		target = &RecoveryInitiatedDetails{}
	case EventRecoveryTokenVerified:
		target = &RecoveryTokenVerifiedDetails{}
	case EventRecoveryAnswersVerified:
		target = &RecoveryAnswersVerifiedDetails{}
	case EventPasswordResetSuccess:
		target = &PasswordResetSuccessDetails{}
	case EventPasswordResetFailure:
		target = &PasswordResetFailureDetails{}
	case EventRecoveryMethodAdded:
		target = &RecoveryMethodAddedDetails{}
	case EventRecoveryMethodRemoved:
		target = &RecoveryMethodRemovedDetails{}
	case EventRecoveryMethodPrimarySet:
		target = &RecoveryMethodPrimarySetDetails{}
	case EventDeviceTrusted:
		target = &DeviceTrustedDetails{}
	case EventDeviceRemoved:
		target = &DeviceRemovedDetails{}
	case EventDevicesRemovedAll:
		target = &DevicesRemovedAllDetails{}
	default:
		return RawDetails{Type: eventType, Raw: append(json.RawMessage(nil), raw...)}, nil
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("failed to decode %s details: %w", eventType, err)
		}
	}
	return deref(target), nil
}

// deref turns the decode target back into a value so stored and decoded
// details compare equal.
func deref(d Details) Details {
	switch v := d.(type) {
	case *RecoveryInitiatedDetails:
		return *v
	case *RecoveryTokenVerifiedDetails:
		return *v
	case *RecoveryAnswersVerifiedDetails:
		return *v
	case *PasswordResetSuccessDetails:
		return *v
	case *PasswordResetFailureDetails:
		return *v
	case *RecoveryMethodAddedDetails:
		return *v
	case *RecoveryMethodRemovedDetails:
		return *v
	case *RecoveryMethodPrimarySetDetails:
		return *v
	case *DeviceTrustedDetails:
		return *v
	case *DeviceRemovedDetails:
		return *v
	case *DevicesRemovedAllDetails:
		return *v
	}
	return d
}
