package reel

import "testing"

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain",
			content: "make the sky orange\n",
			want:    "make the sky orange",
		},
		{
			name:    "multi-line instruction",
			content: "line one\nline two\n",
			want:    "line one\nline two",
		},
		{
			name:    "legacy header",
			content: "# Status: pending\n# Created: 2024-01-01T10:00:00\n\nmake the sky orange\n",
			want:    "make the sky orange",
		},
		{
			name:    "completed trailer",
			content: "make the sky orange\n\n# Completed at: 2024-01-15T10:30:00Z\n",
			want:    "make the sky orange",
		},
		{
			name:    "failed trailer",
			content: "make the sky orange\n\n# Failed at: 2024-01-15T10:30:00Z\n# Error: quota exceeded\n",
			want:    "make the sky orange",
		},
		{
			name:    "legacy header with trailer",
			content: "# Status: pending\n\nmake it louder\n\n# Completed at: 2024-01-15T10:30:00Z\n",
			want:    "make it louder",
		},
		{
			name:    "legacy header while processing",
			content: "# Image Edit Prompt for v3\n# Queued at: 2024-10-24T01:30:00\n# Status: PROCESSING\n\nmake the sky orange\n\n# Processing started: 2024-10-24T01:31:00\n",
			want:    "make the sky orange",
		},
		{
			name:    "legacy completed with processing trailer",
			content: "# Status: COMPLETED\n\nmake the sky orange\n\n# Processing started: 2024-10-24T01:31:00\n\n# Completed at: 2024-10-24T01:32:00\n",
			want:    "make the sky orange",
		},
		{
			name:    "hash inside instruction",
			content: "use colour #ff8800 for the sky\n",
			want:    "use colour #ff8800 for the sky",
		},
		{
			name:    "windows line endings",
			content: "# Status: pending\r\n\r\nmake it louder\r\n",
			want:    "make it louder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParsePayload(tt.content); got != tt.want {
				t.Errorf("ParsePayload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJobStatus_Transitions(t *testing.T) {
	tests := []struct {
		from JobStatus
		to   JobStatus
		want bool
	}{
		{JobPending, JobProcessing, true},
		{JobProcessing, JobCompleted, true},
		{JobProcessing, JobFailed, true},
		{JobPending, JobCompleted, false},
		{JobPending, JobFailed, false},
		{JobProcessing, JobProcessing, false},
		{JobCompleted, JobProcessing, false},
		{JobFailed, JobPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}

	if s, ok := ParseJobStatus(" Failed "); !ok || s != JobFailed {
		t.Errorf("ParseJobStatus(\" Failed \") = (%q, %v)", s, ok)
	}
	if _, ok := ParseJobStatus("queued"); ok {
		t.Error("ParseJobStatus(queued) should be rejected")
	}
	if !JobCompleted.IsTerminal() || JobProcessing.IsTerminal() {
		t.Error("IsTerminal() mismatch")
	}
}
