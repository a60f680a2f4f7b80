package main

import (
	"testing"

	"github.com/glimsocial/glim/client/realtime"
	"github.com/glimsocial/glim/client/session"
)

func TestTerminationReason(t *testing.T) {
	tests := []struct {
		in   string
		want session.Reason
	}{
		{realtime.OpTokenExpired, session.ReasonServerExpired},
		{realtime.OpForceLogout, session.ReasonForceLogout},
		{"realtime authentication failed", session.ReasonRealtimeAuth},
	}
	for _, tt := range tests {
		if got := terminationReason(tt.in); got != tt.want {
			t.Errorf("terminationReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
