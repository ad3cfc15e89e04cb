package scraper

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"jan-server/services/grant-scout/internal/domain/search"
)

const queryPlaceholder = "{query}"

// SitesConfig is the YAML file listing the websites searched for grants.
type SitesConfig struct {
	Sites    []SiteConfig `yaml:"sites"`
	Settings Settings     `yaml:"settings"`
}

// SiteConfig describes one website.
type SiteConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`
	// SearchURL may contain {query}, replaced with the escaped search terms.
	SearchURL string `yaml:"search_url"`
	Enabled   bool   `yaml:"enabled"`
	Timeout   string `yaml:"timeout"`
}

// Settings applies to every site.
type Settings struct {
	DefaultTimeout string `yaml:"default_timeout"`
}

// LoadSitesConfig reads the sites file, expanding environment variables.
// A missing file yields an empty configuration.
func LoadSitesConfig(path string) (*SitesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("sites config not found, web search will use the generative source only")
			return &SitesConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read sites config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg SitesConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sites config: %w", err)
	}

	seen := make(map[string]struct{}, len(cfg.Sites))
	for i := range cfg.Sites {
		site := &cfg.Sites[i]
		site.Name = strings.TrimSpace(site.Name)
		site.URL = strings.TrimSpace(site.URL)
		site.SearchURL = strings.TrimSpace(site.SearchURL)
		name := site.Name
		if name == "" {
			return nil, fmt.Errorf("site %d: name is required", i)
		}
		if !isSafeName(name) {
			return nil, fmt.Errorf("site %q: name may only contain letters, digits, '.', '-' and '_'", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("site %q is defined twice", name)
		}
		seen[name] = struct{}{}
		if !site.Enabled {
			continue
		}
		if _, err := url.ParseRequestURI(site.URL); err != nil {
			return nil, fmt.Errorf("site %q: invalid url: %w", name, err)
		}
	}
	return &cfg, nil
}

// EnabledSites converts the enabled entries into search sites. fallback is
// used when neither the site nor the settings carry a timeout.
func (c *SitesConfig) EnabledSites(fallback time.Duration) search.Sites {
	sites := make(search.Sites, 0, len(c.Sites))
	for _, site := range c.Sites {
		if !site.Enabled {
			continue
		}
		searchURL := site.SearchURL
		if searchURL == "" {
			searchURL = site.URL
		}
		sites = append(sites, search.Site{
			Name:      site.Name,
			URL:       site.URL,
			SearchURL: searchURL,
			Timeout:   c.TimeoutDuration(site, fallback),
		})
	}
	return sites
}

// TimeoutDuration returns the site timeout, then the default timeout, then
// fallback.
func (c *SitesConfig) TimeoutDuration(site SiteConfig, fallback time.Duration) time.Duration {
	for _, raw := range []string{site.Timeout, c.Settings.DefaultTimeout} {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Warn().Str("site", site.Name).Str("timeout", raw).Msg("invalid timeout, ignoring")
			continue
		}
		if d > 0 {
			return d
		}
	}
	return fallback
}

// SearchPageURL returns the URL to fetch when searching site for query.
func SearchPageURL(site search.Site, query string) string {
	target := site.SearchURL
	if target == "" {
		target = site.URL
	}
	if strings.Contains(target, queryPlaceholder) {
		return strings.ReplaceAll(target, queryPlaceholder, url.QueryEscape(query))
	}
	return target
}

func isSafeName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_':
		default:
			return false
		}
	}
	return name != "." && name != ".."
}
