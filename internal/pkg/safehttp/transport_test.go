package safehttp

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{ip: "127.0.0.1", want: false},
		{ip: "::1", want: false},
		{ip: "10.1.2.3", want: false},
		{ip: "192.168.0.10", want: false},
		{ip: "169.254.169.254", want: false},
		{ip: "0.0.0.0", want: false},
		{ip: "93.184.216.34", want: true},
		{ip: "2606:4700::1111", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := Allowed(net.ParseIP(tt.ip)); got != tt.want {
				t.Errorf("Allowed(%s) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}

func TestNewTransport_RejectsLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport()}
	_, err := client.Get(srv.URL)
	if err == nil {
		t.Fatal("expected loopback connection to be rejected")
	}
	if !strings.Contains(err.Error(), "private IP") {
		t.Errorf("unexpected error: %v", err)
	}
}
