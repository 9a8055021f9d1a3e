// Package instance names the running process for lock ownership and logs.
package instance

import (
	"fmt"
	"os"
	"strings"
)

const envWorkerID = "CBWIS_WORKER_ID"

// ID prefers CBWIS_WORKER_ID and otherwise derives hostname-pid.
func ID() string {
	if id := strings.TrimSpace(os.Getenv(envWorkerID)); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
