// Package config resolves settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/catalog"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/images"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/pager"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/search"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/storage"
)

// ErrMissingBackend is returned by RequireBackend.
var ErrMissingBackend = errors.New("storage backend is not configured")

// DefaultBucket is the image bucket the original deployment used.
const DefaultBucket = "yugioh_spreadsheet_maker_cards"

type Catalog struct {
	BaseURL  string `yaml:"base_url"`
	ImageURL string `yaml:"image_url"`
}

type Storage struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	URL    string `yaml:"url"`
	Key    string `yaml:"key"`
	Bucket string `yaml:"bucket"`
}

type Images struct {
	LocalDir       string `yaml:"local_dir"`
	PlaceholderURL string `yaml:"placeholder_url"`
}

// Config is the full application configuration.
type Config struct {
	Catalog        Catalog       `yaml:"catalog"`
	Storage        Storage       `yaml:"storage"`
	Images         Images        `yaml:"images"`
	PageSize       int           `yaml:"page_size"`
	SearchDebounce time.Duration `yaml:"search_debounce"`
	SyncSchedule   string        `yaml:"sync_schedule"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Catalog: Catalog{
			BaseURL:  catalog.DefaultBaseURL,
			ImageURL: catalog.DefaultImageBaseURL,
		},
		Storage: Storage{
			Driver: storage.DriverSQLite,
			Bucket: DefaultBucket,
		},
		Images: Images{
			LocalDir:       "public/card_images",
			PlaceholderURL: images.DefaultPlaceholderURL,
		},
		PageSize:       pager.DefaultPageSize,
		SearchDebounce: search.DefaultDebounce,
	}
}

// Load applies the YAML file at path (when path is not empty) and then the
// environment on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if cfg.PageSize <= 0 {
		return cfg, fmt.Errorf("page size must be positive, got %d", cfg.PageSize)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Catalog.BaseURL, "CATALOG_BASE_URL")
	setString(&c.Catalog.ImageURL, "CATALOG_IMAGE_URL")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.DSN, "STORAGE_DSN")
	setString(&c.Storage.URL, "STORAGE_URL")
	setString(&c.Storage.Key, "STORAGE_KEY")
	setString(&c.Storage.Bucket, "STORAGE_BUCKET")
	setString(&c.Images.LocalDir, "LOCAL_IMAGE_DIR")
	setString(&c.Images.PlaceholderURL, "PLACEHOLDER_IMAGE_URL")
	setString(&c.SyncSchedule, "SYNC_SCHEDULE")

	if v := os.Getenv("PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PAGE_SIZE %q: %w", v, err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("SEARCH_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SEARCH_DEBOUNCE %q: %w", v, err)
		}
		c.SearchDebounce = d
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// RequireBackend checks that the storage backend can be reached with the
// configured credentials. SQLite works without a DSN; the server drivers do
// not. An object endpoint needs its access key.
func (c Config) RequireBackend() error {
	switch c.Storage.Driver {
	case storage.DriverSQLite:
	case storage.DriverPostgres, storage.DriverMySQL, storage.DriverMongo:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: STORAGE_DSN is required for driver %s", ErrMissingBackend, c.Storage.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown STORAGE_DRIVER %q", ErrMissingBackend, c.Storage.Driver)
	}
	if c.Storage.URL != "" && c.Storage.Key == "" {
		return fmt.Errorf("%w: STORAGE_KEY is required with STORAGE_URL", ErrMissingBackend)
	}
	return nil
}

// ObjectBaseURL is the public endpoint of the image bucket, or "".
func (c Config) ObjectBaseURL() string {
	return images.ObjectBaseURL(c.Storage.URL, c.Storage.Bucket)
}

// ImageOptions builds the resolver options.
func (c Config) ImageOptions() images.Options {
	return images.Options{
		LocalDir:         c.Images.LocalDir,
		ObjectBaseURL:    c.ObjectBaseURL(),
		CanonicalBaseURL: c.Catalog.ImageURL,
		PlaceholderURL:   c.Images.PlaceholderURL,
	}
}
