package models

import "testing"

func TestAgentRunStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status AgentRunStatus
		want   bool
	}{
		{"launched is valid", AgentRunStatusLaunched, true},
		{"exited is valid", AgentRunStatusExited, true},
		{"cancelled is valid", AgentRunStatusCancelled, true},
		{"empty string is invalid", AgentRunStatus(""), false},
		{"unknown status is invalid", AgentRunStatus("running"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("AgentRunStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestAgentRunStatus_StringValues(t *testing.T) {
	tests := []struct {
		status AgentRunStatus
		want   string
	}{
		{AgentRunStatusLaunched, "launched"},
		{AgentRunStatusExited, "exited"},
		{AgentRunStatusCancelled, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := string(tt.status); got != tt.want {
				t.Errorf("string(AgentRunStatus) = %q, want %q", got, tt.want)
			}
		})
	}
}
