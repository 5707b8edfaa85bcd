package instance

import (
	"os"
	"strings"
)

// ID names the running process in logs. DYNO wins over HOSTNAME; without
// either the process is "local".
func ID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return "local"
}
