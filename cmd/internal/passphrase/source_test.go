package passphrase

import (
	"bytes"
	"errors"
	"testing"
)

func scripted(answers ...string) func() ([]byte, error) {
	return func() ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no input")
		}
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
}

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("TEST_KEYSTORE_PASS", "from-env")
	s := NewSource("TEST_KEYSTORE_PASS")
	s.read = func() ([]byte, error) {
		t.Fatalf("prompted despite environment value")
		return nil, nil
	}
	got, err := s.Get()
	if err != nil || got != "from-env" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
}

func TestSourceRejectsEmptyEnvironment(t *testing.T) {
	t.Setenv("TEST_KEYSTORE_PASS", "  ")
	if _, err := NewSource("TEST_KEYSTORE_PASS").Get(); err == nil {
		t.Fatalf("expected error for blank passphrase")
	}
}

func TestSourceRequiresTerminal(t *testing.T) {
	s := NewSource("TEST_KEYSTORE_UNSET")
	s.isTTY = func() bool { return false }
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error without terminal")
	}
}

func TestSourcePromptsAndConfirms(t *testing.T) {
	var prompt bytes.Buffer
	s := NewSource("", WithConfirmation())
	s.prompt = &prompt
	s.isTTY = func() bool { return true }
	s.read = scripted("hunter22", "hunter22")
	got, err := s.Get()
	if err != nil || got != "hunter22" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if !bytes.Contains(prompt.Bytes(), []byte("Repeat")) {
		t.Fatalf("confirmation prompt missing: %q", prompt.String())
	}

	again, err := s.Get()
	if err != nil || again != got {
		t.Fatalf("cached Get() = %q, %v", again, err)
	}
}

func TestSourceRejectsMismatch(t *testing.T) {
	s := NewSource("", WithConfirmation())
	s.prompt = &bytes.Buffer{}
	s.isTTY = func() bool { return true }
	s.read = scripted("hunter22", "hunter23")
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected mismatch error")
	}
}
