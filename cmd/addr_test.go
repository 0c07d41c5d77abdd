package cmd

import (
	"os"
	"testing"
)

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"loopback with port", "127.0.0.1:3400", false},
		{"localhost with port", "localhost:8080", false},
		{"port only", ":8080", false},
		{"port zero auto-assign", ":0", false},
		{"ipv6 loopback", "[::1]:3400", false},
		{"missing port", "127.0.0.1", true},
		{"non-numeric port", "localhost:http", true},
		{"port out of range", "localhost:70000", true},
		{"whitespace host", "bad host:8080", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddr(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAddr(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestParseServeAddr(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"default", []string{"lawontip", "serve"}, "127.0.0.1:3400", false},
		{"positional", []string{"lawontip", "serve", ":8080"}, ":8080", false},
		{"flag", []string{"lawontip", "serve", "--addr", ":9090"}, ":9090", false},
		{"single dash flag", []string{"lawontip", "serve", "-addr", "localhost:7000"}, "localhost:7000", false},
		{"invalid positional", []string{"lawontip", "serve", "no-port"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			got, err := parseServeAddr()
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseServeAddr() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseServeAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}
