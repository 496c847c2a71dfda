package recoverymethod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-recovery/pkg/errors"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"User@Example.COM", "user@example.com", false},
		{"  backup@example.org ", "backup@example.org", false},
		{"", "", true},
		{"not-an-email", "", true},
		{"Bob <bob@example.com>", "", true},
		{"a@b@c", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeEmail(tt.input)
			if tt.wantErr {
				assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"+1 (415) 555-0100", "+14155550100", false},
		{"44.20.7946.0958", "442079460958", false},
		{"+49-30-1234567", "+49301234567", false},
		{"", "", true},
		{"12345", "", true},
		{"+0123456789", "", true},
		{"+1415555010012345", "", true},
		{"call me", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if tt.wantErr {
				assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateQuestions(t *testing.T) {
	valid := []QuestionInput{{" City? ", "Paris"}, {"Pet?", "Rex"}}
	cleaned, err := validateQuestions(valid)
	require.NoError(t, err)
	assert.Equal(t, "City?", cleaned[0].Question)

	tests := []struct {
		name      string
		questions []QuestionInput
	}{
		{"none", nil},
		{"too many", []QuestionInput{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}, {"e", "5"}, {"f", "6"}}},
		{"blank question", []QuestionInput{{" ", "x"}}},
		{"blank answer", []QuestionInput{{"City?", "  "}}},
		{"duplicate", []QuestionInput{{"City?", "a"}, {"city?", "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateQuestions(tt.questions)
			assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
		})
	}
}
