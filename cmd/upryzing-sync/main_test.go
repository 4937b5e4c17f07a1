// Copyright 2024-2026 Aiku AI

package main

import (
	"strings"
	"testing"
)

func TestBotToken(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{"set", "bot-secret", "bot-secret", false},
		{"unset", "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("UPRYZING_BOT_TOKEN", tc.value)
			t.Setenv("UPRYZING_TOKEN", "ignored")
			got, err := botToken()
			if (err != nil) != tc.wantErr {
				t.Fatalf("got error %v, want error %t", err, tc.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "UPRYZING_BOT_TOKEN") {
				t.Errorf("got error %q, want it to name the variable", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
