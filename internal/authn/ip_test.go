package authn

import (
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	cases := []struct {
		name       string
		realIP     string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{
			name:       "x-real-ip wins",
			realIP:     "203.0.113.9",
			forwarded:  "198.51.100.1, 10.0.0.1",
			remoteAddr: "10.0.0.2:41312",
			want:       "203.0.113.9",
		},
		{
			name:       "first forwarded-for element",
			forwarded:  "198.51.100.1, 10.0.0.1",
			remoteAddr: "10.0.0.2:41312",
			want:       "198.51.100.1",
		},
		{
			name:       "forwarded-for with spaces",
			forwarded:  "  198.51.100.7 , 10.0.0.1",
			remoteAddr: "10.0.0.2:41312",
			want:       "198.51.100.7",
		},
		{
			name:       "socket address fallback",
			remoteAddr: "192.0.2.4:55100",
			want:       "192.0.2.4",
		},
		{
			name:       "invalid real-ip falls through to socket",
			realIP:     "not-an-ip",
			remoteAddr: "192.0.2.4:55100",
			want:       "192.0.2.4",
		},
		{
			name:       "invalid forwarded-for falls through",
			forwarded:  "unknown",
			remoteAddr: "192.0.2.4:55100",
			want:       "192.0.2.4",
		},
		{
			name:       "ipv6 socket address",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.0.2.4",
			want:       "192.0.2.4",
		},
		{
			name:       "nothing usable",
			remoteAddr: "garbage",
			want:       "0.0.0.0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/auth/login", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.realIP != "" {
				r.Header.Set("X-Real-IP", tc.realIP)
			}
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := ExtractClientIP(r); got != tc.want {
				t.Errorf("ExtractClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
