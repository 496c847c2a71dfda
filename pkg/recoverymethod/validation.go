package recoverymethod

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/tendant/simple-recovery/pkg/errors"
)

const (
	MinQuestions      = 1
	MaxQuestions      = 5
	maxQuestionLength = 500
	maxAnswerLength   = 255
	maxEmailLength    = 254
)

var (
	phonePattern    = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
)

// QuestionInput is a question and its plaintext answer as submitted by the user
type QuestionInput struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func validateQuestions(questions []QuestionInput) ([]QuestionInput, error) {
	if len(questions) < MinQuestions || len(questions) > MaxQuestions {
		return nil, errors.Validation("questions", fmt.Sprintf("between %d and %d questions are required", MinQuestions, MaxQuestions))
	}

	seen := make(map[string]bool, len(questions))
	cleaned := make([]QuestionInput, 0, len(questions))
	for i, q := range questions {
		text := strings.TrimSpace(q.Question)
		answer := strings.TrimSpace(q.Answer)
		field := fmt.Sprintf("questions[%d]", i)

		if text == "" {
			return nil, errors.Validation(field+".question", "is required")
		}
		if answer == "" {
			return nil, errors.Validation(field+".answer", "is required")
		}
		if len(text) > maxQuestionLength {
			return nil, errors.Validation(field+".question", "is too long")
		}
		if len(answer) > maxAnswerLength {
			return nil, errors.Validation(field+".answer", "is too long")
		}

		key := strings.ToLower(text)
		if seen[key] {
			return nil, errors.Validation(field+".question", "is a duplicate")
		}
		seen[key] = true
		cleaned = append(cleaned, QuestionInput{Question: text, Answer: q.Answer})
	}
	return cleaned, nil
}

// NormalizeEmail validates a bare email address and lower-cases it
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.Validation("email", "is required")
	}
	if len(email) > maxEmailLength {
		return "", errors.Validation("email", "is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", errors.Validation("email", "is not a valid email address")
	}
	return strings.ToLower(addr.Address), nil
}

// NormalizePhone strips common separators and checks the E.164 shape
func NormalizePhone(phone string) (string, error) {
	phone = phoneSeparators.Replace(strings.TrimSpace(phone))
	if phone == "" {
		return "", errors.Validation("phone", "is required")
	}
	if !phonePattern.MatchString(phone) {
		return "", errors.Validation("phone", "is not a valid phone number")
	}
	return phone, nil
}
