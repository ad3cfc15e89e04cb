package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/domain/search"
)

const maxStderrChars = 500

// ProcessRunner runs an external scraper for one site and reads the pages it
// leaves in its output directory. The command is invoked as
//
//	<command...> --site <name> --url <search url> --query <query> --output <dir>
//
// and is expected to write one JSON file per page, each holding a Page or a
// list of pages, either directly into <dir> or into a run subdirectory.
type ProcessRunner struct {
	command   []string
	cacheDir  string
	killDelay time.Duration
	maxChars  int
	now       func() time.Time
}

// NewProcessRunner returns nil when no command is configured.
func NewProcessRunner(command []string, cacheDir string, killDelay time.Duration, maxChars int) *ProcessRunner {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil
	}
	if killDelay <= 0 {
		killDelay = 3 * time.Second
	}
	return &ProcessRunner{
		command:   command,
		cacheDir:  cacheDir,
		killDelay: killDelay,
		maxChars:  maxChars,
		now:       time.Now,
	}
}

// Run executes the scraper until it exits or ctx ends. On expiry the process
// receives SIGTERM and is killed after the kill delay. Pages written before
// an abnormal exit are still returned. The run's output directory is removed
// once its pages have been read.
func (r *ProcessRunner) Run(ctx context.Context, site search.Site, query string) ([]Page, error) {
	runDir := filepath.Join(r.cacheDir, site.Name, r.now().UTC().Format("20060102T150405.000000000"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scraper output dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			log.Warn().Err(err).Str("output", runDir).Msg("failed to remove scraper output dir")
		}
	}()

	args := append([]string{}, r.command[1:]...)
	args = append(args,
		"--site", site.Name,
		"--url", SearchPageURL(site, query),
		"--query", query,
		"--output", runDir,
	)

	cmd := exec.CommandContext(ctx, r.command[0], args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.killDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := r.now()
	runErr := cmd.Run()

	pages, readErr := readRunPages(runDir, r.maxChars)
	if readErr != nil && runErr == nil {
		runErr = readErr
	}

	event := log.Debug()
	if runErr != nil {
		event = log.Warn().Err(runErr).Str("stderr", tail(stderr.String(), maxStderrChars))
	}
	event.
		Str("site", site.Name).
		Str("output", runDir).
		Int("pages", len(pages)).
		Dur("elapsed", r.now().Sub(start)).
		Msg("scraper process finished")

	if len(pages) > 0 {
		return pages, nil
	}
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("scraper process for %s: %w", site.Name, ctxErr)
		}
		return nil, fmt.Errorf("scraper process for %s: %w", site.Name, runErr)
	}
	return nil, nil
}

// readRunPages reads the page files in dir, or in its newest subdirectory
// when dir holds none.
func readRunPages(dir string, maxChars int) ([]Page, error) {
	pages, err := readPageFiles(dir, maxChars)
	if err != nil || len(pages) > 0 {
		return pages, err
	}
	latest, err := latestSubdir(dir)
	if err != nil || latest == "" {
		return nil, err
	}
	return readPageFiles(latest, maxChars)
}

func readPageFiles(dir string, maxChars int) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var pages []Page
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("failed to read scraped page")
			continue
		}
		decoded, err := decodePages(data)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping malformed scraped page")
			continue
		}
		for _, page := range decoded {
			page.Content = truncate(page.Content, maxChars)
			if page.Content == "" {
				continue
			}
			pages = append(pages, page)
		}
	}
	return pages, nil
}

func decodePages(data []byte) ([]Page, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pages []Page
		if err := json.Unmarshal(data, &pages); err != nil {
			return nil, err
		}
		return pages, nil
	}
	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, err
	}
	return []Page{page}, nil
}

func latestSubdir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var dirs []candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, candidate{path: filepath.Join(dir, entry.Name()), modTime: info.ModTime()})
	}
	if len(dirs) == 0 {
		return "", nil
	}
	sort.Slice(dirs, func(i, j int) bool {
		if dirs[i].modTime.Equal(dirs[j].modTime) {
			return dirs[i].path > dirs[j].path
		}
		return dirs[i].modTime.After(dirs[j].modTime)
	})
	return dirs[0].path, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
