package userdata

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// pathKey is the entry that prepends a directory to PATH.
const pathKey = "PATH"

// EnvEntry represents a single key-value pair from a .env file.
type EnvEntry struct {
	Key   string
	Value string
}

// EnvWriter records the environment variables and PATH entries an
// environment needs. Applying them to a live shell is left to the shell.
type EnvWriter interface {
	Set(env, key, value string) error
	SetPath(env, dir string) error
}

// FileEnvWriter stores entries in <root>/env/<env>.env, one file per
// environment. Each file holds at most one PATH entry.
type FileEnvWriter struct {
	Layout Layout
}

// Set records KEY=VALUE for env, replacing any previous value of key.
func (w FileEnvWriter) Set(env, key, value string) error {
	return w.update(env, EnvEntry{Key: key, Value: value})
}

// SetPath records dir as the PATH directory contributed by env.
func (w FileEnvWriter) SetPath(env, dir string) error {
	sep := string(os.PathListSeparator)
	ref := "${PATH}"
	if runtime.GOOS == "windows" {
		ref = "%PATH%"
	}
	return w.update(env, EnvEntry{Key: pathKey, Value: dir + sep + ref})
}

// Entries returns the recorded entries for env, or nil when nothing has
// been recorded yet.
func (w FileEnvWriter) Entries(env string) ([]EnvEntry, error) {
	entries, err := ParseEnvFile(w.Layout.EnvFilePath(env))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}

func (w FileEnvWriter) update(env string, entry EnvEntry) error {
	entries, err := w.Entries(env)
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].Key == entry.Key {
			entries[i].Value = entry.Value
			replaced = true
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return WriteEnvFile(w.Layout.EnvFilePath(env), entries)
}

// ListEnvFiles returns the names of the environments with a recorded .env
// file, sorted.
func ListEnvFiles(l Layout) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.Root, EnvDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading env directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".env") {
			names = append(names, strings.TrimSuffix(e.Name(), ".env"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// ParseEnvFile reads a .env file and returns key-value entries.
// It skips blank lines and lines starting with #.
func ParseEnvFile(path string) ([]EnvEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening env file %s: %w", path, err)
	}
	defer f.Close()

	var entries []EnvEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		entries = append(entries, EnvEntry{
			Key:   strings.TrimSpace(key),
			Value: strings.TrimSpace(value),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return entries, nil
}

// WriteEnvFile replaces path with entries, one KEY=VALUE per line.
func WriteEnvFile(path string, entries []EnvEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), DirPermNormal); err != nil {
		return fmt.Errorf("creating env directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Managed by dev. Source this file to apply the selected environment.\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s=%s\n", e.Key, e.Value)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), FilePermNormal); err != nil {
		return fmt.Errorf("writing env file %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing env file %s: %w", path, err)
	}
	return nil
}
