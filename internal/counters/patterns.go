package counters

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"perfreporter/internal/logger"
)

// executableDir is a variable so tests can point relative definition files
// somewhere else
var executableDir = func() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveDefinitionPath keeps absolute and existing relative paths and
// otherwise looks next to the executable
func resolveDefinitionPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(executableDir(), path)
}

// ReadPatternFile reads a counter definition file: one path per line, lines
// starting with # and blank lines are ignored. The result is trimmed,
// deduplicated case-insensitively and sorted.
func ReadPatternFile(path string) ([]string, error) {
	f, err := os.Open(resolveDefinitionPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open counter definitions: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read counter definitions %s: %w", path, err)
	}

	return NormalizePatterns(lines), nil
}

// NormalizePatterns merges pattern lists, trims every entry, drops blanks,
// removes case-insensitive duplicates (first spelling wins) and sorts.
func NormalizePatterns(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, p := range list {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			key := strings.ToLower(p)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// LoadPatterns reads every definition file and merges them with the inline
// counter names. A file that cannot be read is logged and skipped.
func LoadPatterns(files, names []string, log *logger.Logger) []string {
	lists := make([][]string, 0, len(files)+1)
	for _, file := range files {
		patterns, err := ReadPatternFile(file)
		if err != nil {
			log.Error("Skipping counter definitions %s: %v", file, err)
			continue
		}
		lists = append(lists, patterns)
	}
	lists = append(lists, names)
	return NormalizePatterns(lists...)
}
