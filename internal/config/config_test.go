package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMergedWithoutProfile(t *testing.T) {
	s := &Store{Root: t.TempDir()}

	cfg, used, err := s.LoadMerged(Options{PageWorkers: 4, Language: "fr"})
	if err != nil {
		t.Fatalf("LoadMerged: %v", err)
	}

	if !strings.HasPrefix(used, "(default config in memory)") {
		t.Fatalf("used = %q", used)
	}
	if cfg.PageWorkers != 4 || cfg.Language != "fr" {
		t.Fatalf("overrides lost: %+v", cfg)
	}
	if cfg.ChapterWorkers != DefaultChapterWorkers || cfg.RequestTimeout != DefaultRequestTimeout || !cfg.Compress {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadMergedProfileThenFlags(t *testing.T) {
	s := &Store{Root: t.TempDir()}
	if _, err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	path := s.Path(DefaultLabel)
	yaml := "output: /data/manga\npage_workers: 6\nrequest_timeout: 45s\ncompress: true\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, used, err := s.LoadMerged(Options{ChapterWorkers: 3, NoCompress: true})
	if err != nil {
		t.Fatalf("LoadMerged: %v", err)
	}

	if used != path {
		t.Fatalf("used = %q, want %q", used, path)
	}
	if cfg.Output != "/data/manga" || cfg.PageWorkers != 6 || cfg.RequestTimeout != 45*time.Second {
		t.Fatalf("profile values lost: %+v", cfg)
	}
	if cfg.ChapterWorkers != 3 || cfg.Compress {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.APIURL != DefaultAPIURL || cfg.Language != DefaultLanguage {
		t.Fatalf("missing keys not defaulted: %+v", cfg)
	}
}

func TestLoadMergedIgnoreConfig(t *testing.T) {
	s := &Store{Root: t.TempDir()}
	if _, err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := os.WriteFile(s.Path(DefaultLabel), []byte("page_workers: 1\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, used, err := s.LoadMerged(Options{IgnoreConfig: true})
	if err != nil {
		t.Fatalf("LoadMerged: %v", err)
	}
	if used != "(ignored config)" || cfg.PageWorkers != DefaultPageWorkers {
		t.Fatalf("used=%q cfg=%+v", used, cfg)
	}
}

func TestLoadMergedBrokenProfile(t *testing.T) {
	s := &Store{Root: t.TempDir()}
	if _, err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := os.WriteFile(s.Path(DefaultLabel), []byte("page_workers: [\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := s.LoadMerged(Options{}); err == nil {
		t.Fatalf("broken YAML accepted")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	c := &Config{PageWorkers: -1, ChapterWorkers: 0, RequestTimeout: -time.Second}
	normalizeDefaults(c)

	if c.Output != "." || c.PageWorkers != DefaultPageWorkers || c.ChapterWorkers != DefaultChapterWorkers ||
		c.RequestTimeout != DefaultRequestTimeout || c.APIURL != DefaultAPIURL || c.Language != DefaultLanguage {
		t.Fatalf("normalized = %+v", c)
	}
}

func TestStoreProfiles(t *testing.T) {
	s := &Store{Root: t.TempDir()}

	if _, err := s.CurrentLabel(); !errors.Is(err, ErrNoConfig) {
		t.Fatalf("CurrentLabel = %v, want ErrNoConfig", err)
	}
	if _, err := s.Reset(); err == nil {
		t.Fatalf("Reset without active profile succeeded")
	}

	path, err := s.Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := s.Init(); !errors.Is(err, os.ErrExist) {
		t.Fatalf("second Init = %v, want ErrExist", err)
	}

	if err := SaveYAML(&Config{Output: "elsewhere"}, s.Path("work")); err != nil {
		t.Fatalf("SaveYAML: %v", err)
	}
	if err := s.Switch("missing"); err == nil {
		t.Fatalf("switched to missing profile")
	}
	if err := s.Switch("work"); err != nil {
		t.Fatalf("Switch: %v", err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Label != DefaultLabel || list[0].Active || list[1].Label != "work" || !list[1].Active {
		t.Fatalf("list = %+v", list)
	}

	reset, err := s.Reset()
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reset != s.Path("work") || reset == path {
		t.Fatalf("reset %q", reset)
	}
	cfg, err := loadYAML(reset)
	if err != nil {
		t.Fatalf("loadYAML: %v", err)
	}
	if cfg.Output != DefaultConfig().Output {
		t.Fatalf("reset output = %q", cfg.Output)
	}
}

func TestConfigRootFollowsXDG(t *testing.T) {
	if os.Getenv("APPDATA") != "" {
		t.Skip("APPDATA takes precedence")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got := ConfigRoot(); got != filepath.Join(dir, "mangapdf") {
		t.Fatalf("ConfigRoot = %q", got)
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	DefaultConfig().Print(&buf)

	for _, want := range []string{"-page_workers: 10", "-chapter_workers: 2", "-request_timeout: 30s", "-compress: true"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, buf.String())
		}
	}
}
