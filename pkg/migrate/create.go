package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9]+`)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<name>.sql. The version is
// the current UTC time, bumped past the newest existing file so two migrations
// created in the same second still sort.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createSQLMigration(dir, name, time.Now().UTC())
}

func createSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := slugify(name)
	if slug == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version, err := nextVersion(dir, now)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version, slug))
	if err := os.WriteFile(path, []byte(fmt.Sprintf(migrationTemplate, slug)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

func nextVersion(dir string, now time.Time) (string, error) {
	latest, err := latestVersion(dir)
	if err != nil {
		return "", fmt.Errorf("scan %q: %w", dir, err)
	}
	candidate := now.Format(versionLayout)
	if latest == "" || candidate > latest {
		return candidate, nil
	}
	prev, err := time.Parse(versionLayout, latest)
	if err != nil {
		return "", fmt.Errorf("parse version %q: %w", latest, err)
	}
	return prev.Add(time.Second).Format(versionLayout), nil
}

func slugify(name string) string {
	slug := nameSanitizeRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(slug, "_")
}
