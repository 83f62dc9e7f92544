package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// outputRunner runs a command and returns its stdout. Replaced in tests.
var outputRunner = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// FFmpegVersion returns the first line of `ffmpeg -version`.
func FFmpegVersion(ctx context.Context, binary string) (string, error) {
	out, err := outputRunner(ctx, binary, "-hide_banner", "-version")
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", binary, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// MissingCapabilities reports which of the encoders and filters named are not
// compiled into the ffmpeg binary.
func MissingCapabilities(ctx context.Context, binary string, encoders, filters []string) ([]string, error) {
	var missing []string
	if len(encoders) > 0 {
		out, err := outputRunner(ctx, binary, "-hide_banner", "-encoders")
		if err != nil {
			return nil, fmt.Errorf("%s -encoders: %w", binary, err)
		}
		missing = append(missing, absentNames(out, encoders, "encoder ")...)
	}
	if len(filters) > 0 {
		out, err := outputRunner(ctx, binary, "-hide_banner", "-filters")
		if err != nil {
			return nil, fmt.Errorf("%s -filters: %w", binary, err)
		}
		missing = append(missing, absentNames(out, filters, "filter ")...)
	}
	return missing, nil
}

// absentNames scans ffmpeg's capability listing, where the name is the second
// whitespace-separated column.
func absentNames(listing []byte, names []string, prefix string) []string {
	present := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(listing))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 {
			present[fields[1]] = struct{}{}
		}
	}
	var missing []string
	for _, name := range names {
		if _, ok := present[name]; !ok {
			missing = append(missing, prefix+name)
		}
	}
	return missing
}
