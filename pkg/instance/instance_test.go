package instance

import (
	"os"
	"strconv"
	"strings"
	"testing"
)

func TestIDPrefersEnv(t *testing.T) {
	t.Setenv(envWorkerID, " cron-a ")
	if got := ID(); got != "cron-a" {
		t.Fatalf("ID() = %q, want cron-a", got)
	}
}

func TestIDFallsBackToHostAndPID(t *testing.T) {
	t.Setenv(envWorkerID, "")
	got := ID()
	if !strings.HasSuffix(got, "-"+strconv.Itoa(os.Getpid())) {
		t.Fatalf("ID() = %q, expected pid suffix", got)
	}
}
