package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDetails(t *testing.T) {
	requestID := uuid.New()
	methodID := uuid.New()
	expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []Details{
		RecoveryInitiatedDetails{Email: "a@example.com", RequestID: &requestID, RecoveryMethodID: &methodID, MethodType: "email"},
		RecoveryTokenVerifiedDetails{RequestID: requestID, RecoveryMethodID: methodID, MethodType: "security_questions"},
		RecoveryAnswersVerifiedDetails{RequestID: requestID, Attempts: 2, AttemptsRemaining: 1, Reason: ReasonIncorrectAnswers},
		PasswordResetSuccessDetails{RequestID: requestID, DevicesRevoked: 3},
		PasswordResetFailureDetails{RequestID: requestID, Reason: ReasonIdentityStore},
		RecoveryMethodAddedDetails{RecoveryMethodID: methodID, MethodType: "phone", Replaced: true},
		RecoveryMethodRemovedDetails{RecoveryMethodID: methodID, MethodType: "phone"},
		RecoveryMethodPrimarySetDetails{RecoveryMethodID: methodID, MethodType: "email"},
		DeviceTrustedDetails{DeviceID: methodID, DeviceName: "Safari on iOS", ExpiresAt: expires, Refreshed: true},
		DeviceRemovedDetails{DeviceID: methodID},
		DevicesRemovedAllDetails{Count: 4, Reason: ReasonCredentialReset},
	}

	for _, details := range tests {
		t.Run(string(details.EventType()), func(t *testing.T) {
			raw, err := EncodeDetails(details)
			require.NoError(t, err)

			decoded, err := DecodeDetails(details.EventType(), raw)
			require.NoError(t, err)
			assert.Equal(t, details, decoded)
		})
	}
}

func TestDecodeDetails_UnknownType(t *testing.T) {
	decoded, err := DecodeDetails("legacy_event", []byte(`{"foo":"bar"}`))
	require.NoError(t, err)
	assert.Equal(t, EventType("legacy_event"), decoded.EventType())

	out, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"foo":"bar"}`, string(out))
}

func TestDecodeDetails_Malformed(t *testing.T) {
	_, err := DecodeDetails(EventDeviceTrusted, []byte(`{"device_id": 12}`))
	assert.Error(t, err)
}

func TestEventType_IsValid(t *testing.T) {
	assert.True(t, EventRecoveryInitiated.IsValid())
	assert.True(t, EventDevicesRemovedAll.IsValid())
	assert.False(t, EventType("login").IsValid())
}
