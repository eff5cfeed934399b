package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"family-tree-go/pkg/logger"
)

const (
	dotenvFilename = ".env"
	dotenvPathKey  = "DOTENV_PATH"
)

type dotenvEntry struct {
	key   string
	value string
}

// loadDotEnv fills unset variables from DOTENV_PATH or from the nearest .env
// found walking up from the working directory. A missing file is not an
// error; values already present in the environment win.
func loadDotEnv(log logger.Logger) error {
	path := os.Getenv(dotenvPathKey)
	if path == "" {
		found, ok := findUp(dotenvFilename)
		if !ok {
			log.Debug("dotenv: no .env file found")
			return nil
		}
		path = found
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("dotenv: file not found", "path", path)
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	entries, err := parseDotEnv(file)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	loaded, skipped, err := applyDotEnv(entries)
	if err != nil {
		return err
	}
	log.Info("dotenv: loaded variables", "path", path, "loaded", loaded, "skipped", skipped)
	return nil
}

func findUp(filename string) (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// parseDotEnv reads KEY=VALUE lines. ${NAME} in unquoted and double quoted
// values expands to an earlier entry or to the environment.
func parseDotEnv(r io.Reader) ([]dotenvEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []dotenvEntry
	seen := map[string]string{}
	lookup := func(name string) string {
		if value, ok := seen[name]; ok {
			return value
		}
		return os.Getenv(name)
	}

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, value, ok := splitKeyValue(line)
		if !ok {
			return nil, fmt.Errorf("line %d: expected KEY=VALUE", lineNo)
		}
		if !strings.HasPrefix(strings.TrimSpace(line[strings.Index(line, "=")+1:]), "'") {
			value = os.Expand(value, lookup)
		}
		seen[key] = value
		entries = append(entries, dotenvEntry{key: key, value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func applyDotEnv(entries []dotenvEntry) (loaded, skipped int, err error) {
	for _, entry := range entries {
		if _, exists := os.LookupEnv(entry.key); exists {
			skipped++
			continue
		}
		if err := os.Setenv(entry.key, entry.value); err != nil {
			return loaded, skipped, fmt.Errorf("set %s: %w", entry.key, err)
		}
		loaded++
	}
	return loaded, skipped, nil
}

func splitKeyValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}

	value = strings.TrimSpace(value)
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		if value[0] == '"' {
			if unquoted, err := strconv.Unquote(value); err == nil {
				return key, unquoted, true
			}
		}
		return key, value[1 : len(value)-1], true
	}
	return key, stripInlineComment(value), true
}

func stripInlineComment(value string) string {
	for i := 1; i < len(value); i++ {
		if value[i] == '#' && (value[i-1] == ' ' || value[i-1] == '\t') {
			return strings.TrimSpace(value[:i-1])
		}
	}
	return value
}
