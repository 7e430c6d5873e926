package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/harvester/internal/model"
)

// TestNewConfig documents the defaults. Changing one must be intentional.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("crawl bounds", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxDepth != 3 {
			t.Errorf("expected MaxDepth 3, got %d", cfg.MaxDepth)
		}
		if cfg.MaxPages != 100 {
			t.Errorf("expected MaxPages 100, got %d", cfg.MaxPages)
		}
		if cfg.Concurrency != 4 {
			t.Errorf("expected Concurrency 4, got %d", cfg.Concurrency)
		}
		if cfg.MaxQueueSize != 10000 {
			t.Errorf("expected MaxQueueSize 10000, got %d", cfg.MaxQueueSize)
		}
	})

	t.Run("fetch settings", func(t *testing.T) {
		t.Parallel()
		if cfg.RequestTimeout != 30*time.Second {
			t.Errorf("expected RequestTimeout 30s, got %v", cfg.RequestTimeout)
		}
		if cfg.MaxRetries != 3 {
			t.Errorf("expected MaxRetries 3, got %d", cfg.MaxRetries)
		}
		if cfg.MaxBodySize != 10*1024*1024 {
			t.Errorf("expected MaxBodySize 10MB, got %d", cfg.MaxBodySize)
		}
		if !cfg.RespectRobots {
			t.Error("expected robots.txt to be respected by default")
		}
	})

	t.Run("content filter is all", func(t *testing.T) {
		t.Parallel()
		if cfg.ContentFilter != model.FilterAll {
			t.Errorf("expected filter all, got %q", cfg.ContentFilter)
		}
	})

	t.Run("storage is sqlite", func(t *testing.T) {
		t.Parallel()
		if cfg.Backend != BackendSQLite {
			t.Errorf("expected sqlite backend, got %q", cfg.Backend)
		}
		if cfg.DatabaseDir() != XDGDataDir() {
			t.Errorf("expected XDG data dir, got %q", cfg.DatabaseDir())
		}
	})

	t.Run("tor is off", func(t *testing.T) {
		t.Parallel()
		if cfg.UseTor {
			t.Error("expected UseTor to be false")
		}
		if cfg.TorStartupTimeout != 3*time.Minute {
			t.Errorf("expected TorStartupTimeout 3m, got %v", cfg.TorStartupTimeout)
		}
	})
}

// TestConfigValidate checks one validation rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.SeedURLs = []string{"https://example.com/"}
		cfg.OutputDir = "data/example"
		return cfg
	}

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"no seed", func(c *Config) { c.SeedURLs = nil }, ErrNoSeed},
		{"no output dir", func(c *Config) { c.OutputDir = "  " }, ErrNoOutputDir},
		{"unusable output dir", func(c *Config) { c.OutputDir = "." }, ErrInvalidOutputDir},
		{"bad filter", func(c *Config) { c.ContentFilter = "pictures" }, ErrInvalidContentFilter},
		{"negative depth", func(c *Config) { c.MaxDepth = -1 }, ErrInvalidMaxDepth},
		{"zero pages", func(c *Config) { c.MaxPages = 0 }, ErrInvalidMaxPages},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, ErrInvalidTimeout},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, ErrInvalidMaxRetries},
		{"negative queue", func(c *Config) { c.MaxQueueSize = -5 }, ErrInvalidMaxQueueSize},
		{"unknown scope", func(c *Config) { c.Scope = "same-planet" }, ErrInvalidScope},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"negative delay", func(c *Config) { c.CrawlDelay = -time.Second }, ErrInvalidCrawlDelay},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"tor and proxy", func(c *Config) {
			c.UseTor = true
			c.ProxyAddress = "127.0.0.1:1080"
		}, ErrConflictingProxy},
		{"unknown backend", func(c *Config) { c.Backend = "mongo" }, ErrUnknownBackend},
		{"redis without url", func(c *Config) { c.Backend = BackendRedis }, ErrNoRedisURL},
		{"two report formats", func(c *Config) {
			c.JSONReport = true
			c.MarkdownReport = true
		}, ErrConflictingReportFormats},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("depth zero and any scope are valid", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig()
		cfg.MaxDepth = 0
		cfg.Scope = "ANY"
		cfg.ContentFilter = "images"
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})
}

func TestConfigNamespaceAndFilter(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.OutputDir = "out/site"
	ns, err := cfg.Namespace()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns != "out_site" {
		t.Errorf("expected namespace out_site, got %q", ns)
	}

	cfg.ContentFilter = "videos"
	filter, err := cfg.Filter()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filter.Allows(model.KindVideo) || filter.Allows(model.KindImage) {
		t.Errorf("expected videos only, got %s", filter)
	}
}

func intPtr(n int) *int {
	return &n
}

func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Cookie:         "default=1",
			Depth:          intPtr(2),
			Headers:        map[string]string{"Accept-Language": "en"},
			IgnorePatterns: []string{"/logout"},
		},
		Sites: map[string]SiteConfig{
			"www.example.com": {
				Cookie:       "session=abc",
				MaxPages:     10,
				ContentType:  "images",
				Headers:      map[string]string{"Authorization": "Bearer x"},
				AllowedHosts: []string{"cdn.example.net"},
			},
			"seed-only.test": {
				Depth: intPtr(0),
			},
		},
	}

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()

		sc := cf.GetSiteConfig("other.test")
		if sc.Cookie != "default=1" || sc.Depth == nil || *sc.Depth != 2 || sc.MaxPages != 0 {
			t.Errorf("expected defaults, got %+v", sc)
		}
	})

	t.Run("site overrides defaults", func(t *testing.T) {
		t.Parallel()

		sc := cf.GetSiteConfig("example.com")
		if sc.Cookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", sc.Cookie)
		}
		if sc.Depth == nil || *sc.Depth != 2 {
			t.Errorf("expected default depth 2, got %v", sc.Depth)
		}
		if sc.MaxPages != 10 || sc.ContentType != "images" {
			t.Errorf("expected site budget and filter, got %+v", sc)
		}
		if sc.Headers["Accept-Language"] != "en" || sc.Headers["Authorization"] != "Bearer x" {
			t.Errorf("expected merged headers, got %v", sc.Headers)
		}
		if len(sc.IgnorePatterns) != 1 || len(sc.AllowedHosts) != 1 {
			t.Errorf("expected inherited ignore pattern and site hosts, got %+v", sc)
		}
	})

	t.Run("site depth zero overrides defaults", func(t *testing.T) {
		t.Parallel()

		sc := cf.GetSiteConfig("seed-only.test")
		if sc.Depth == nil || *sc.Depth != 0 {
			t.Errorf("expected depth 0, got %v", sc.Depth)
		}
	})

	t.Run("merging does not modify defaults", func(t *testing.T) {
		t.Parallel()

		_ = cf.GetSiteConfig("WWW.EXAMPLE.COM")
		if _, ok := cf.Defaults.Headers["Authorization"]; ok {
			t.Error("defaults were modified by merge")
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.harvester")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".harvester")
		content := `defaults:
  depth: 2
  cookie: "default=abc"
sites:
  example.com:
    depth: 5
    maxPages: 40
    contentType: files
    headers:
      Authorization: "Bearer token"
    allowedHosts:
      - static.example.com
    ignorePatterns:
      - "/admin/*"
    followPatterns:
      - "/docs/*"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.Depth == nil || *cfg.Defaults.Depth != 2 || cfg.Defaults.Cookie != "default=abc" {
			t.Errorf("unexpected defaults: %+v", cfg.Defaults)
		}
		site, ok := cfg.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com in sites")
		}
		if site.Depth == nil || *site.Depth != 5 || site.MaxPages != 40 || site.ContentType != "files" {
			t.Errorf("unexpected site config: %+v", site)
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Error("expected Authorization header")
		}
		if len(site.AllowedHosts) != 1 || len(site.IgnorePatterns) != 1 || len(site.FollowPatterns) != 1 {
			t.Errorf("expected one host and one pattern each, got %+v", site)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".harvester")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".harvester")
		if err := os.WriteFile(configPath, []byte("defaults:\n  maxpages: 10\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for misspelled key")
		}
	})

	t.Run("empty file yields empty settings", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".harvester")
		if err := os.WriteFile(configPath, []byte("# nothing configured\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.Depth != nil || len(cfg.Sites) != 0 {
			t.Errorf("expected empty settings, got %+v", cfg)
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".harvester")
		if err := os.WriteFile(configPath, []byte("defaults:\n  depth: 1\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func TestSearchPaths(t *testing.T) {
	t.Parallel()

	paths := SearchPaths()
	if len(paths) == 0 {
		t.Fatal("expected search paths")
	}

	xdgPath := filepath.Join(XDGConfigDir(), xdgConfigFile)
	xdgIndex := -1
	for i, p := range paths {
		if p == xdgPath {
			xdgIndex = i
		}
	}
	if xdgIndex == -1 {
		t.Fatalf("expected %q in %v", xdgPath, paths)
	}
	if cwd, err := os.Getwd(); err == nil {
		if want := filepath.Join(cwd, DefaultConfigFile); paths[0] != want {
			t.Errorf("expected working directory first, got %q", paths[0])
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if want := filepath.Join(home, DefaultConfigFile); paths[len(paths)-1] != want || xdgIndex == len(paths)-1 {
			t.Errorf("expected home directory last, got %v", paths)
		}
	}
}

func TestFirstExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.yaml")
	second := filepath.Join(dir, "second.yaml")
	third := filepath.Join(dir, "third.yaml")
	for _, p := range []string{second, third} {
		if err := os.WriteFile(p, []byte("defaults: {}"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	if got := firstExisting([]string{missing, dir, second, third}); got != second {
		t.Errorf("expected %q, got %q", second, got)
	}
	if got := firstExisting([]string{missing, dir}); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if filepath.Base(XDGDataDir()) != AppName {
		t.Errorf("expected data dir to end with %s, got %q", AppName, XDGDataDir())
	}
	if filepath.Base(XDGConfigDir()) != AppName {
		t.Errorf("expected config dir to end with %s, got %q", AppName, XDGConfigDir())
	}
}
