package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/speters/kw1281/pkg/kwp"
)

func TestControllerAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{"01", 0x01, false},
		{"17", 0x17, false},
		{"$56", 0x56, false},
		{"0x46", 0x46, false},
		{"7F", 0x7F, false},
		{"80", 0, true},
		{"xyz", 0, true},
	}

	for _, tt := range tests {
		got, err := controllerAddress(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("controllerAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("controllerAddress(%q) = 0x%02X, want 0x%02X", tt.in, got, tt.want)
		}
	}
}

func TestParseLength(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"2048", 2048, false},
		{"$800", 2048, false},
		{"$10000", 0x10000, false},
		{"$10001", 0, true},
		{"0", 0, true},
	}

	for _, tt := range tests {
		got, err := parseLength(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLength(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLength(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseSeed(t *testing.T) {
	want := []byte{0x00, 0x12, 0x00, 0x34, 0x00, 0x56, 0x00, 0x78, 0x01, 0x00}
	for _, args := range [][]string{
		{"00 12 00 34 00 56 00 78 01 00"},
		{"00123400560078", "0100"},
		{"$00", "$12", "$0", "$34", "$00", "$56", "$00", "$78", "$01", "$00"},
	} {
		got, err := parseSeed(args)
		if err != nil {
			t.Errorf("parseSeed(%q) error = %v", args, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("parseSeed(%q) = % X, want % X", args, got, want)
		}
	}

	if _, err := parseSeed([]string{"zz"}); err == nil {
		t.Errorf("parseSeed(zz) did not fail")
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&kwp.ReadRefusedError{Address: 0x10}, http.StatusForbidden},
		{fmt.Errorf("login: %w", kwp.ErrLoginRejected), http.StatusForbidden},
		{kwp.ErrTimeout, http.StatusGatewayTimeout},
		{fmt.Errorf("%w (timeout)", kwp.ErrWakeupFailed), http.StatusGatewayTimeout},
		{&kwp.CounterDesyncError{Expected: 1, Actual: 2}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestLinkBroken(t *testing.T) {
	if !linkBroken(fmt.Errorf("reading echo of 0x01: %w", io.EOF)) {
		t.Errorf("linkBroken(EOF) = false")
	}
	if linkBroken(kwp.ErrTimeout) {
		t.Errorf("linkBroken(ErrTimeout) = true")
	}
}

func TestVersionRoute(t *testing.T) {
	Version, BuildDate = "v1.2.3", "2024-01-01T00:00:00Z"
	s := &server{}

	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest("GET", "/version", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /version status = %d", rec.Code)
	}
	var v map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("GET /version body %q: %v", rec.Body.String(), err)
	}
	if v["version"] != "v1.2.3" || v["build_date"] != "2024-01-01T00:00:00Z" {
		t.Errorf("GET /version = %v", v)
	}
}

func TestMemRouteBadRequest(t *testing.T) {
	s := &server{}
	for _, path := range []string{"/eeprom/$10000/1", "/rom/0/0", "/eeprom/zz/16"} {
		rec := httptest.NewRecorder()
		s.router().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusBadRequest)
		}
	}
}
