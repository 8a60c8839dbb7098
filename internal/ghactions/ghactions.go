// Package ghactions writes GitHub Actions step outputs and workflow commands.
package ghactions

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// IsActions reports whether the process runs inside a GitHub Actions job.
func IsActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// IsCI detects if running in a CI/CD environment.
func IsCI() bool {
	ciEnvVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
		"TRAVIS",
		"CIRCLECI",
	}

	for _, envVar := range ciEnvVars {
		if v := os.Getenv(envVar); v != "" && v != "false" && v != "0" {
			return true
		}
	}
	return false
}

// SetOutputs appends key/value pairs to the file named by GITHUB_OUTPUT.
// It does nothing when the variable is unset. Keys are written in sorted
// order.
func SetOutputs(outputs map[string]string) error {
	path := os.Getenv("GITHUB_OUTPUT")
	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open GITHUB_OUTPUT: %w", err)
	}
	defer f.Close()

	if err := WriteOutputs(f, outputs); err != nil {
		return fmt.Errorf("failed to write GITHUB_OUTPUT: %w", err)
	}
	return nil
}

// WriteOutputs writes outputs in the GITHUB_OUTPUT file format. Multiline
// values use the heredoc form with a random delimiter.
func WriteOutputs(w io.Writer, outputs map[string]string) error {
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "" || strings.ContainsAny(k, "=\r\n") {
			return fmt.Errorf("invalid output name %q", k)
		}
		v := outputs[k]
		if !strings.ContainsAny(v, "\r\n") {
			if _, err := fmt.Fprintf(w, "%s=%s\n", k, v); err != nil {
				return err
			}
			continue
		}
		delim := "ghadelimiter_" + uuid.NewString()
		if _, err := fmt.Fprintf(w, "%s<<%s\n%s\n%s\n", k, delim, v, delim); err != nil {
			return err
		}
	}
	return nil
}

// Error prints an ::error workflow command annotating file.
func Error(w io.Writer, file, msg string) {
	if file != "" {
		fmt.Fprintf(w, "::error file=%s::%s\n", escapeProperty(file), escapeData(msg))
		return
	}
	fmt.Fprintf(w, "::error::%s\n", escapeData(msg))
}

// Notice prints a ::notice workflow command.
func Notice(w io.Writer, msg string) {
	fmt.Fprintf(w, "::notice::%s\n", escapeData(msg))
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

func escapeProperty(s string) string {
	s = escapeData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	return strings.ReplaceAll(s, ",", "%2C")
}
