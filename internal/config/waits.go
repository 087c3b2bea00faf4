package config

import (
	"fmt"
	"strconv"
	"strings"
)

// parseWaitSeconds parses a wait option given in whole seconds. Blank
// means the default; anything non-numeric or negative is a
// configuration error, reported before provisioning starts.
func parseWaitSeconds(name, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number of seconds, got %q", name, raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", name, n)
	}
	return n, nil
}
