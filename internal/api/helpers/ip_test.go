package helpers

import (
	"net/http/httptest"
	"testing"
)

func TestGetRealIP_PrefersXForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	r.RemoteAddr = "10.0.0.1:1234"

	ip := GetRealIP(r)
	if ip == nil || ip.String() != "203.0.113.5" {
		t.Errorf("expected 203.0.113.5, got %v", ip)
	}
}

func TestGetRealIP_FallsBackToXRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.7")
	r.RemoteAddr = "10.0.0.1:1234"

	ip := GetRealIP(r)
	if ip == nil || ip.String() != "198.51.100.7" {
		t.Errorf("expected 198.51.100.7, got %v", ip)
	}
}

func TestGetRealIP_FallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:5678"

	ip := GetRealIP(r)
	if ip == nil || ip.String() != "192.0.2.10" {
		t.Errorf("expected 192.0.2.10, got %v", ip)
	}
}

func TestGetRealIP_IgnoresUnparseableForwardedHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "not-an-ip")
	r.RemoteAddr = "192.0.2.10:5678"

	ip := GetRealIP(r)
	if ip == nil || ip.String() != "192.0.2.10" {
		t.Errorf("expected fallback to RemoteAddr 192.0.2.10, got %v", ip)
	}
}
