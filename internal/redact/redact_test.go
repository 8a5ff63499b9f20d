package redact

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		notWant string
	}{
		{
			name:  "plain message is unchanged",
			input: "computation failed: n must be non-negative, got -1",
			want:  "computation failed: n must be non-negative, got -1",
		},
		{
			name:    "worker path",
			input:   `failed to start worker process: fork/exec /usr/local/bin/offload: permission denied`,
			want:    "failed to start worker process: fork/exec " + PathPlaceholder + ": permission denied",
			notWant: "/usr/local/bin",
		},
		{
			name:    "windows path",
			input:   `exec: C:\Program\offload\worker.exe not found`,
			notWant: `C:\Program`,
		},
		{
			name:    "stack trace",
			input:   "computation failed: panic: boom\ngoroutine 7 [running]:\nmain.f()\n\t/src/main.go:10",
			want:    "computation failed: panic: boom\n" + StackPlaceholder,
			notWant: "main.go",
		},
		{
			name:    "credential in stderr",
			input:   "worker process exited (exit status 1): API_KEY=abc123def456 rejected",
			want:    "worker process exited (exit status 1): API_KEY=" + CredentialPlaceholder + " rejected",
			notWant: "abc123def456",
		},
		{
			name:    "address",
			input:   "dial tcp 10.0.0.12:8443: connection refused",
			want:    "dial tcp " + HostPlaceholder + ": connection refused",
			notWant: "10.0.0.12",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := String(tt.input)
			if tt.want != "" || tt.input == "" {
				assert.Equal(t, tt.want, got)
			}
			if tt.notWant != "" {
				assert.NotContains(t, got, tt.notWant)
			}
		})
	}
}

func TestError(t *testing.T) {
	assert.Equal(t, "", Error(nil))
	assert.Equal(t, "open "+PathPlaceholder+": no such file or directory",
		Error(errors.New("open /etc/offload/config.yaml: no such file or directory")))
}
