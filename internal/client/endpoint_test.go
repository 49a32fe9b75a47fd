package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpoint(t *testing.T) {
	tests := map[string]string{
		"ws://localhost:8888":   "ws://localhost:8888/admin",
		"ws://localhost:8888/":  "ws://localhost:8888/admin",
		"http://127.0.0.1:9000": "ws://127.0.0.1:9000/admin",
		"https://example.com":   "wss://example.com/admin",
		"localhost:8888":        "ws://localhost:8888/admin",
	}
	for in, want := range tests {
		assert.Equal(t, want, endpoint(in, AdminPath), in)
	}
}
