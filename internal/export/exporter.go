package export

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/edgard/zalobot/internal/errs"
)

// Exporter writes CSV exports into one directory.
type Exporter struct {
	dir     string
	baseURL string
	keep    int
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Exporter. baseURL is the public server address used in links.
func New(dir, baseURL string, keep int, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Exporter{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		keep:    keep,
		logger:  logger.With("component", "exporter"),
		now:     time.Now,
	}
}

// BaseURLFromAddr derives a local base URL from a listen address such as ":3000".
func BaseURLFromAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		port = "3000"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Dir returns the exports directory.
func (e *Exporter) Dir() string { return e.dir }

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName builds export_<group>[_<message>]_<timestamp>.csv.
func (e *Exporter) FileName(groupID, messageID string) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(e.now().UTC().Format("2006-01-02T15:04:05.000Z"))
	group := unsafeNameChars.ReplaceAllString(groupID, "_")
	if messageID == "" {
		return fmt.Sprintf("export_%s_%s.csv", group, ts)
	}
	return fmt.Sprintf("export_%s_%s_%s.csv", group, unsafeNameChars.ReplaceAllString(messageID, "_"), ts)
}

// Export renders payload to a new CSV file and returns its path.
func (e *Exporter) Export(payload any, groupID, messageID string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", errs.NewExportError("failed to create exports directory", err)
	}

	path := filepath.Join(e.dir, e.FileName(groupID, messageID))
	f, err := os.Create(path)
	if err != nil {
		return "", errs.NewExportError("failed to create export file", err)
	}

	table := BuildTable(payload)
	if err := table.Write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", errs.NewExportError("failed to write export file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", errs.NewExportError("failed to close export file", err)
	}

	e.logger.Info("CSV file created", "path", path, "rows", len(table.Rows), "columns", len(table.Header))
	return path, nil
}

// FileURL returns {base}/exports/{name}.
func (e *Exporter) FileURL(path string) (string, error) {
	if e.baseURL == "" {
		return "", errs.NewExportError("public base URL is not configured", nil)
	}
	return e.baseURL + "/exports/" + filepath.Base(path), nil
}

// ViewURL returns {base}/exports/view/{name}.
func (e *Exporter) ViewURL(path string) (string, error) {
	if e.baseURL == "" {
		return "", errs.NewExportError("public base URL is not configured", nil)
	}
	return e.baseURL + "/exports/view/" + filepath.Base(path), nil
}

// Resolve maps a file name from a URL to a path inside the exports directory.
// Names that are not plain .csv file names are rejected.
func (e *Exporter) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".csv") {
		return "", errs.NewValidationError(fmt.Sprintf("invalid export name %q", name), nil)
	}
	path := filepath.Join(e.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", errs.NewExportError("export file not found", err)
	}
	return path, nil
}

// Cleanup keeps the newest keep CSV files by modification time and deletes
// the rest. It returns how many files were removed.
func (e *Exporter) Cleanup() (int, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, errs.NewExportError("failed to list exports directory", err)
	}

	type file struct {
		name string
		mod  time.Time
	}
	var files []file
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				e.logger.Warn("Could not stat export file", "name", entry.Name(), "error", err)
			}
			continue
		}
		files = append(files, file{name: entry.Name(), mod: info.ModTime()})
	}
	if len(files) <= e.keep {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].name > files[j].name
		}
		return files[i].mod.After(files[j].mod)
	})

	removed := 0
	for _, f := range files[e.keep:] {
		if err := os.Remove(filepath.Join(e.dir, f.name)); err != nil {
			e.logger.Warn("Could not delete old export file", "name", f.name, "error", err)
			continue
		}
		removed++
	}
	e.logger.Info("Old export files cleaned up", "removed", removed, "kept", e.keep)
	return removed, nil
}
