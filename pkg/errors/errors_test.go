package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New("test error")
	if err == nil {
		t.Fatal("New() returned nil")
	}

	if !strings.Contains(err.Error(), "test error") {
		t.Errorf("Expected error message to contain 'test error', got: %s", err.Error())
	}

	if err.Location() == "" {
		t.Error("Location should not be empty")
	}
}

func TestWrap(t *testing.T) {
	baseErr := errors.New("base error")
	err := Wrap(baseErr, "wrapped")

	if err == nil {
		t.Fatal("Wrap() returned nil")
	}

	if !strings.Contains(err.Error(), "wrapped") {
		t.Errorf("Expected error message to contain 'wrapped', got: %s", err.Error())
	}

	if !strings.Contains(err.Error(), "base error") {
		t.Errorf("Expected error message to contain 'base error', got: %s", err.Error())
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != baseErr {
		t.Errorf("Unwrap() returned wrong error: %v", unwrapped)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, "message"); err != nil {
		t.Errorf("Wrap(nil) should return nil, got: %v", err)
	}
}

func TestWithField(t *testing.T) {
	err := New("test error").WithField("key", "value")

	fields := err.GetFields()
	if len(fields) != 1 {
		t.Fatalf("Expected 1 field, got %d", len(fields))
	}

	if fields["key"] != "value" {
		t.Errorf("Expected field['key'] = 'value', got: %v", fields["key"])
	}
}

func TestSentinelMatching(t *testing.T) {
	err := Wrap(ErrReasoningTimeout, "analysis took too long")

	if !IsErrorType(err, ErrReasoningTimeout) {
		t.Error("wrapped error should match its sentinel")
	}
	if IsErrorType(err, ErrReasoningParse) {
		t.Error("wrapped error should not match an unrelated sentinel")
	}
}

func TestNewCallNotFound(t *testing.T) {
	err := NewCallNotFound("call-123")

	if !IsErrorType(err, ErrCallNotFound) {
		t.Error("NewCallNotFound should match ErrCallNotFound")
	}
	if err.GetCode() != "CALL_NOT_FOUND" {
		t.Errorf("Expected code CALL_NOT_FOUND, got: %s", err.GetCode())
	}
	if err.GetFields()["call_id"] != "call-123" {
		t.Errorf("Expected call_id field, got: %v", err.GetFields())
	}
}

func TestGetErrorCode(t *testing.T) {
	err := NewInvalidInput("bad chunk number")
	if GetErrorCode(err) != "INVALID_INPUT" {
		t.Errorf("Expected INVALID_INPUT, got: %s", GetErrorCode(err))
	}

	if GetErrorCode(errors.New("plain")) != "" {
		t.Error("Plain errors should have no code")
	}
}

func TestNewModuleFailure(t *testing.T) {
	cause := errors.New("backend down")
	err := NewModuleFailure("transcription", cause)

	if !IsErrorType(err, ErrModuleFailure) {
		t.Error("NewModuleFailure should match ErrModuleFailure")
	}
	if !strings.Contains(err.Error(), "transcription") {
		t.Errorf("Expected module name in message, got: %s", err.Error())
	}
}

func TestAsJSON(t *testing.T) {
	err := New("boom").WithField("call_id", "call-1").WithCode("BOOM")

	payload := err.AsJSON()
	if payload["message"] != "boom: boom" && payload["message"] != "boom" {
		t.Errorf("Unexpected message: %v", payload["message"])
	}
	if payload["code"] != "BOOM" {
		t.Errorf("Expected code BOOM, got: %v", payload["code"])
	}
	if payload["location"] == "" {
		t.Error("Location should be present")
	}
}
