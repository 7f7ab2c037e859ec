package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentify(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"api key wins", map[string]string{HeaderAPIKey: "key-1", HeaderRealIP: "10.0.0.1"}, "key-1"},
		{"real ip", map[string]string{HeaderRealIP: "10.0.0.1", HeaderForwardedFor: "10.0.0.2"}, "10.0.0.1"},
		{"first forwarded entry", map[string]string{HeaderForwardedFor: " 10.0.0.2 , 10.0.0.3"}, "10.0.0.2"},
		{"blank headers", map[string]string{HeaderAPIKey: "  ", HeaderForwardedFor: ","}, Anonymous},
		{"nothing", nil, Anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, Identify(r))
		})
	}
}
