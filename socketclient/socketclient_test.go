// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package socketclient

import (
	"context"
	"errors"
	"testing"
)

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		input       string
		wantNetwork string
		wantAddress string
	}{
		{"/tmp/pulse-native", "unix", "/tmp/pulse-native"},
		{"localhost", "tcp", "localhost:" + DefaultPort},
		{"localhost:1234", "tcp", "localhost:1234"},
		{"[::1]:4713", "tcp", "[::1]:4713"},
	}
	for _, test := range tests {
		network, address := SplitAddress(test.input)
		if network != test.wantNetwork {
			t.Errorf("SplitAddress(%q) network: got %q, want %q", test.input, network, test.wantNetwork)
		}
		if address != test.wantAddress {
			t.Errorf("SplitAddress(%q) address: got %q, want %q", test.input, address, test.wantAddress)
		}
	}
}

func TestDialUnresolvableHost(t *testing.T) {
	_, err := Dial(context.Background(), "this-host-does-not-resolve.invalid:4713")
	var invalid *ErrInvalidServer
	if !errors.As(err, &invalid) {
		t.Fatalf("Dial: got %v, want *ErrInvalidServer", err)
	}
}
