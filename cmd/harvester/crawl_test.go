package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/report"
)

// newTestSite serves a seed page linking to one page and one image.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Home</title></head><body>
<p>Welcome to the test site.</p>
<a href="/about">About</a>
<img src="/logo.png" alt="logo">
</body></html>`)
	})
	mux.HandleFunc("GET /about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>About</title></head><body><p>About us.</p></body></html>`)
	})
	mux.HandleFunc("GET /logo.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, image.NewRGBA(image.Rect(0, 0, 2, 2))) //nolint:errcheck // test server
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	tests := []struct {
		flag      string
		shorthand string
		defValue  string
	}{
		{"output", "o", ""},
		{"type", "t", "all"},
		{"depth", "d", "3"},
		{"max-pages", "p", "100"},
		{"concurrency", "n", "4"},
		{"timeout", "", "30s"},
		{"retries", "", "3"},
		{"max-queue", "", "10000"},
		{"scope", "", "same-origin"},
		{"delay", "", "250ms"},
		{"no-robots", "", "false"},
		{"sitemap", "", "false"},
		{"save-files", "", "false"},
		{"proxy", "", ""},
		{"tor", "", "false"},
		{"tor-timeout", "T", "3m0s"},
		{"batch", "b", "2"},
		{"config", "c", ""},
		{"backend", "", "sqlite"},
		{"json", "j", "false"},
		{"markdown", "m", "false"},
		{"report", "r", ""},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.flag)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.flag)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestBuildCrawlConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-o", "out/site", "-c", writeSiteConfig(t, "")}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildCrawlConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.OutputDir != "out/site" {
			t.Errorf("expected output out/site, got %s", cfg.OutputDir)
		}
		if len(cfg.SeedURLs) != 1 || cfg.SeedURLs[0] != "https://example.com/" {
			t.Errorf("unexpected seeds %v", cfg.SeedURLs)
		}
		if !cfg.RespectRobots {
			t.Error("expected robots.txt to be respected by default")
		}
		if cfg.MaxDepth != config.DefaultMaxDepth || cfg.BatchSize != config.DefaultBatchSize {
			t.Errorf("unexpected defaults: depth %d, batch %d", cfg.MaxDepth, cfg.BatchSize)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		err := cmd.ParseFlags([]string{
			"-o", "out", "-t", "images", "-d", "0", "-p", "7", "-n", "2",
			"--timeout", "5s", "--retries", "1", "--max-queue", "50",
			"--scope", "same-site", "--delay", "0s", "--no-robots", "--sitemap",
			"--save-files", "--download-ext", "pdf,zip", "--proxy", "127.0.0.1:9050",
			"--backend", "memory", "-j", "-r", "report.json",
			"-c", writeSiteConfig(t, ""),
		})
		if err != nil {
			t.Fatal(err)
		}
		cfg, err := buildCrawlConfig(cmd, []string{"https://a.example/", "https://b.example/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.ContentFilter != "images" || cfg.MaxDepth != 0 || cfg.MaxPages != 7 || cfg.Concurrency != 2 {
			t.Errorf("unexpected crawl settings: %+v", cfg)
		}
		if cfg.RequestTimeout != 5*time.Second || cfg.MaxRetries != 1 || cfg.MaxQueueSize != 50 {
			t.Errorf("unexpected fetch settings: %+v", cfg)
		}
		if cfg.Scope != "same-site" || cfg.CrawlDelay != 0 || cfg.RespectRobots || !cfg.UseSitemap || !cfg.SaveFiles {
			t.Errorf("unexpected traversal settings: %+v", cfg)
		}
		if len(cfg.DownloadExtensions) != 2 || cfg.DownloadExtensions[1] != "zip" {
			t.Errorf("unexpected download extensions %v", cfg.DownloadExtensions)
		}
		if cfg.ProxyAddress != "127.0.0.1:9050" || cfg.Backend != config.BackendMemory {
			t.Errorf("unexpected transport settings: %+v", cfg)
		}
		if !cfg.JSONReport || cfg.ReportFile != "report.json" {
			t.Errorf("unexpected report settings: %+v", cfg)
		}
		if len(cfg.SeedURLs) != 2 {
			t.Errorf("expected 2 seeds, got %d", len(cfg.SeedURLs))
		}
	})

	t.Run("config file", func(t *testing.T) {
		t.Parallel()

		path := writeSiteConfig(t, `
sites:
  example.com:
    cookie: "session=abc"
    depth: 5
`)
		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-o", "out", "-c", path}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildCrawlConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		site := cfg.SiteConfigs.GetSiteConfig("www.example.com")
		if site.Cookie != "session=abc" || site.Depth == nil || *site.Depth != 5 {
			t.Errorf("unexpected site config %+v", site)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		if err := cmd.ParseFlags([]string{"-o", "out", "-c", missing}); err != nil {
			t.Fatal(err)
		}
		_, err := buildCrawlConfig(cmd, []string{"https://example.com/"})
		if err == nil || !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("invalid config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-o", "out", "-c", writeSiteConfig(t, "sites: [unclosed")}); err != nil {
			t.Fatal(err)
		}
		_, err := buildCrawlConfig(cmd, []string{"https://example.com/"})
		if err == nil || !strings.Contains(err.Error(), "failed to load config file") {
			t.Errorf("expected load error, got %v", err)
		}
	})
}

// writeSiteConfig writes a configuration file and returns its path.
func writeSiteConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".harvester")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCrawlCmd_ConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no seed", []string{"-o", "out"}, config.ErrNoSeed},
		{"no output", []string{"https://example.com/"}, config.ErrNoOutputDir},
		{"bad type", []string{"-o", "out", "-t", "pictures", "https://example.com/"}, config.ErrInvalidContentFilter},
		{"bad scope", []string{"-o", "out", "--scope", "galaxy", "https://example.com/"}, config.ErrInvalidScope},
		{"conflicting formats", []string{"-o", "out", "-j", "-m", "https://example.com/"}, config.ErrConflictingReportFormats},
		{"conflicting proxies", []string{"-o", "out", "--tor", "--proxy", "127.0.0.1:9050", "https://example.com/"}, config.ErrConflictingProxy},
		{"redis without url", []string{"-o", "out", "--backend", "redis", "https://example.com/"}, config.ErrNoRedisURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append([]string{"crawl", "-c", writeSiteConfig(t, "")}, tt.args...)
			_, _, err := execute(t, args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCrawlQueryHistory(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	dbDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "site")
	cfgFile := writeSiteConfig(t, "")

	stdout, stderr, err := execute(t, "crawl",
		"-o", outDir, "--db-dir", dbDir, "-c", cfgFile,
		"--delay", "0s", "--retries", "0", "--save-files", "-j",
		srv.URL+"/")
	if err != nil {
		t.Fatalf("crawl failed: %v\nstderr: %s", err, stderr)
	}

	var crawlReport report.JSONReport
	if err := json.Unmarshal([]byte(stdout), &crawlReport); err != nil {
		t.Fatalf("invalid crawl report: %v\n%s", err, stdout)
	}
	if crawlReport.Summary.PagesVisited != 3 {
		t.Errorf("expected 3 pages visited, got %d", crawlReport.Summary.PagesVisited)
	}
	if crawlReport.TotalItems != 3 {
		t.Errorf("expected 3 items, got %d", crawlReport.TotalItems)
	}
	if crawlReport.Status != "Complete" {
		t.Errorf("expected Complete, got %s", crawlReport.Status)
	}
	if _, err := os.Stat(filepath.Join(outDir, "images")); err != nil {
		t.Errorf("expected saved images directory: %v", err)
	}

	t.Run("query all", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "query", "-o", outDir, "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		var got map[string][]map[string]any
		if err := json.Unmarshal([]byte(stdout), &got); err != nil {
			t.Fatalf("invalid query output: %v\n%s", err, stdout)
		}
		if len(got["content"]) != 2 || len(got["images"]) != 1 {
			t.Errorf("expected 2 pages and 1 image, got %d and %d", len(got["content"]), len(got["images"]))
		}
		if _, ok := got["videos"]; !ok {
			t.Error("expected every collection as a key")
		}
	})

	t.Run("query empty collection", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "query", "-o", outDir, "--db-dir", dbDir, "-t", "videos")
		if err == nil || err.Error() != "no videos found" {
			t.Errorf("expected 'no videos found', got %v", err)
		}
	})

	t.Run("query text", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "query", "-o", outDir, "--db-dir", dbDir, "-t", "images", "--text")
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if !strings.Contains(stdout, "IMAGES (1)") {
			t.Errorf("expected image section, got:\n%s", stdout)
		}
	})

	t.Run("history", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-o", outDir, "-j")
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		var sessions []struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal([]byte(stdout), &sessions); err != nil {
			t.Fatalf("invalid history output: %v\n%s", err, stdout)
		}
		if len(sessions) != 1 || sessions[0].SessionID != crawlReport.Summary.SessionID {
			t.Fatalf("expected the crawl session, got %+v", sessions)
		}

		stdout, _, err = execute(t, "history", "--db-dir", dbDir, "--session", sessions[0].SessionID)
		if err != nil {
			t.Fatalf("history --session failed: %v", err)
		}
		if !strings.Contains(stdout, "HARVEST REPORT") || !strings.Contains(stdout, srv.URL) {
			t.Errorf("expected session report, got:\n%s", stdout)
		}
	})

	t.Run("history markdown to file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "reports", "history.md")
		if _, _, err := execute(t, "history", "--db-dir", dbDir, "-m", "-r", path); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		content, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(content), "# Crawl History") {
			t.Errorf("unexpected markdown:\n%s", content)
		}
	})
}

func TestRunCrawl_SeedFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, stderr, err := execute(t, "crawl",
		"-o", filepath.Join(t.TempDir(), "out"), "--backend", "memory",
		"-c", writeSiteConfig(t, ""), "--delay", "0s", "--retries", "0",
		srv.URL+"/")
	if err == nil || !strings.Contains(err.Error(), "1 of 1 seed(s) could not be crawled") {
		t.Errorf("expected seed failure, got %v", err)
	}
	if !strings.Contains(stderr, "Crawl error for") {
		t.Errorf("expected crawl error on stderr, got %s", stderr)
	}
}

func TestQueryCmd_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no output", []string{"query"}, config.ErrNoOutputDir},
		{"bad type", []string{"query", "-o", "out", "-t", "pictures"}, config.ErrInvalidContentFilter},
		{"unknown backend", []string{"query", "-o", "out", "--backend", "mongo"}, config.ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := execute(t, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("nothing stored", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "query", "-o", "out", "--db-dir", t.TempDir())
		if err == nil || err.Error() != "no data found" {
			t.Errorf("expected 'no data found', got %v", err)
		}
	})
}

func TestHistoryCmd_Empty(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "history", "--db-dir", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "No crawl sessions recorded.") {
		t.Errorf("expected empty history, got %s", stdout)
	}

	if _, _, err := execute(t, "history", "--db-dir", t.TempDir(), "--limit", "-1"); err == nil {
		t.Error("expected error for negative limit")
	}
}
