package service

import (
	"regexp"
	"testing"

	"interview-copilot-service/src/models"
)

func TestGenerateJoinCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9A-F]{6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateJoinCode()
		if err != nil {
			t.Fatalf("generateJoinCode: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("code %q does not match uppercase hex format", code)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("join codes are not varying")
	}
}

func TestValidateJoinCodeCaseInsensitive(t *testing.T) {
	session := &models.CopilotSession{JoinCode: "A1B2C3"}

	if err := ValidateJoinCode(session, "a1b2c3"); err != nil {
		t.Errorf("lowercase code rejected: %v", err)
	}
	if err := ValidateJoinCode(session, " A1B2C3 "); err != nil {
		t.Errorf("padded code rejected: %v", err)
	}
	if err := ValidateJoinCode(session, "FFFFFF"); err != models.ErrInvalidJoinCode {
		t.Errorf("wrong code: err = %v, want ErrInvalidJoinCode", err)
	}
	if err := ValidateJoinCode(&models.CopilotSession{}, "A1B2C3"); err != models.ErrInvalidJoinCode {
		t.Errorf("session without code: err = %v, want ErrInvalidJoinCode", err)
	}
}
