package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL         = "https://api.mangadex.org"
	DefaultLanguage       = "en"
	DefaultPageWorkers    = 10
	DefaultChapterWorkers = 2
	DefaultRequestTimeout = 30 * time.Second
)

type Config struct {
	Output         string        `yaml:"output"`
	StagingDir     string        `yaml:"staging_dir"`
	PageWorkers    int           `yaml:"page_workers"`
	ChapterWorkers int           `yaml:"chapter_workers"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	APIURL         string        `yaml:"api_url"`
	Language       string        `yaml:"language"`
	DataSaver      bool          `yaml:"data_saver"`
	Compress       bool          `yaml:"compress"`
	Overwrite      bool          `yaml:"overwrite"`
	Debug          bool          `yaml:"debug"`
	UserAgent      string        `yaml:"user_agent"`
}

// Options carries CLI overrides. Zero values leave the profile untouched.
type Options struct {
	IgnoreConfig   bool
	Debug          bool
	Output         string
	StagingDir     string
	PageWorkers    int
	ChapterWorkers int
	RequestTimeout time.Duration
	APIURL         string
	Language       string
	DataSaver      bool
	NoCompress     bool
	Overwrite      bool
	UserAgent      string
}

func DefaultConfig() *Config {
	return &Config{
		Output:         "output",
		StagingDir:     "",
		PageWorkers:    DefaultPageWorkers,
		ChapterWorkers: DefaultChapterWorkers,
		RequestTimeout: DefaultRequestTimeout,
		APIURL:         DefaultAPIURL,
		Language:       DefaultLanguage,
		Compress:       true,
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// keys missing from the file keep their defaults
	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadMerged reads the active profile of the default store and applies opts.
func LoadMerged(opts Options) (*Config, string, error) {
	return DefaultStore().LoadMerged(opts)
}

func (s *Store) LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := s.ActivePath()
	if errors.Is(err, ErrNoConfig) || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `mangapdf config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.StagingDir != "" {
		c.StagingDir = o.StagingDir
	}
	if o.PageWorkers != 0 {
		c.PageWorkers = o.PageWorkers
	}
	if o.ChapterWorkers != 0 {
		c.ChapterWorkers = o.ChapterWorkers
	}
	if o.RequestTimeout != 0 {
		c.RequestTimeout = o.RequestTimeout
	}
	if o.APIURL != "" {
		c.APIURL = o.APIURL
	}
	if o.Language != "" {
		c.Language = o.Language
	}
	if o.DataSaver {
		c.DataSaver = true
	}
	if o.NoCompress {
		c.Compress = false
	}
	if o.Overwrite {
		c.Overwrite = true
	}
	if o.Debug {
		c.Debug = true
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
}

func normalizeDefaults(c *Config) {
	if c.Output == "" {
		c.Output = "."
	}
	if c.PageWorkers < 1 {
		c.PageWorkers = DefaultPageWorkers
	}
	if c.ChapterWorkers < 1 {
		c.ChapterWorkers = DefaultChapterWorkers
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
}

func (c *Config) Print(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}

	fmt.Fprintf(w, " -output: %s\n", c.Output)
	if c.StagingDir != "" {
		fmt.Fprintf(w, " -staging_dir: %s\n", c.StagingDir)
	}
	fmt.Fprintf(w, " -page_workers: %d\n", c.PageWorkers)
	fmt.Fprintf(w, " -chapter_workers: %d\n", c.ChapterWorkers)
	fmt.Fprintf(w, " -request_timeout: %s\n", c.RequestTimeout)
	fmt.Fprintf(w, " -api_url: %s\n", c.APIURL)
	fmt.Fprintf(w, " -language: %s\n", c.Language)
	if c.DataSaver {
		fmt.Fprintf(w, " -data_saver: %t\n", c.DataSaver)
	}
	fmt.Fprintf(w, " -compress: %t\n", c.Compress)
	if c.Overwrite {
		fmt.Fprintf(w, " -overwrite: %t\n", c.Overwrite)
	}
	if c.Debug {
		fmt.Fprintf(w, " -debug: %t\n", c.Debug)
	}
	if c.UserAgent != "" {
		fmt.Fprintf(w, " -user_agent: %s\n", c.UserAgent)
	}
}
