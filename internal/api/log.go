package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"flightlogger/pkg/logging"
)

// Regex to capture key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// handleLatestLog returns the last captured log line and, with ?all=1, the
// retained history.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"log": formatLogLine(logging.GlobalLogCapture.GetLastLine()),
	}
	if r.URL.Query().Get("all") != "" {
		lines := logging.GlobalLogCapture.Lines()
		for i, l := range lines {
			lines[i] = formatLogLine(l)
		}
		resp["lines"] = lines
	}
	writeJSON(w, http.StatusOK, resp)
}

// formatLogLine condenses a slog text line to "HH:MM:SS msg (k=v, ...)".
// Level is dropped, attributes are sorted, values over 20 chars are omitted.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg string
	var timeStr string
	var params []string

	for _, m := range matches {
		key := m[1]
		val := m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		if key == "time" {
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				timeStr = t.Format("15:04:05")
			}
			continue
		}

		if key == "level" {
			continue
		}

		if key == "msg" {
			msg = val
			continue
		}

		if len(val) > 20 {
			continue
		}

		params = append(params, fmt.Sprintf("%s=%s", key, val))
	}

	if msg == "" {
		return raw
	}

	sort.Strings(params)

	output := msg
	if timeStr != "" {
		output = fmt.Sprintf("%s %s", timeStr, msg)
	}

	if len(params) > 0 {
		return fmt.Sprintf("%s (%s)", output, strings.Join(params, ", "))
	}
	return output
}
