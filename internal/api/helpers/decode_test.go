package helpers

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSON_DecodesValidBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Alice"}`))
	var body struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if body.Name != "Alice" {
		t.Errorf("unexpected decoded name: %q", body.Name)
	}
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Alice","admin":true}`))
	var body struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(r, &body); err == nil {
		t.Error("expected an error for an unknown field, got nil")
	}
}

func TestDecodeJSON_RejectsMalformedJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{not json`))
	var body struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(r, &body); err == nil {
		t.Error("expected an error for malformed JSON, got nil")
	}
}
