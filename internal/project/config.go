// Package project loads rivet.toml, the per-project build configuration.
package project

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"

	"rivet/internal/actions"
	"rivet/internal/diag"
)

// ManifestName is the project configuration file name.
const ManifestName = "rivet.toml"

// Config is a decoded rivet.toml.
type Config struct {
	Build Build  `toml:"build"`
	Pages []Page `toml:"pages"`

	// Path is the file Config was loaded from; empty for defaults.
	Path string `toml:"-"`
}

// Build is the [build] table.
type Build struct {
	Root           string `toml:"root"`
	OutDir         string `toml:"out_dir"`
	Jobs           int    `toml:"jobs"`
	Cache          bool   `toml:"cache"`
	CacheDir       string `toml:"cache_dir"`
	Actions        bool   `toml:"actions"`
	RouteManifests bool   `toml:"route_manifests"`
}

// Page is one [[pages]] entry.
type Page struct {
	Route   string          `toml:"route"`
	Entry   string          `toml:"entry"`
	Runtime actions.Runtime `toml:"runtime"`
}

// Default returns the configuration used when a key is absent.
func Default() Config {
	return Config{Build: Build{
		Root:    ".",
		OutDir:  ".rivet",
		Cache:   true,
		Actions: true,
	}}
}

// Load reads and validates the file at p.
func Load(p string) (Config, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return Config{}, diag.Wrap(diag.BuildConfig, p, err, "failed to read project file")
	}
	return Parse(p, data)
}

// Parse decodes data on top of Default and validates it. Unknown keys are
// errors so typos do not silently change a build.
func Parse(p string, data []byte) (Config, error) {
	cfg := Default()
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, diag.Wrap(diag.BuildConfig, p, err, "failed to parse TOML")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, diag.Errorf(diag.BuildConfig, p, "unknown keys: %s", strings.Join(keys, ", "))
	}
	cfg.Path = p
	if err := cfg.Normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize cleans routes and entries (NFC, slash separated) and validates
// the result. Every problem is reported.
func (c *Config) Normalize() error {
	var errs []error
	if c.Build.Jobs < 0 {
		errs = append(errs, diag.Errorf(diag.BuildConfig, c.Path, "build.jobs must not be negative"))
	}
	if strings.TrimSpace(c.Build.OutDir) == "" {
		errs = append(errs, diag.Errorf(diag.BuildConfig, c.Path, "build.out_dir must not be empty"))
	}
	if c.Build.Root == "" {
		c.Build.Root = "."
	}

	seen := make(map[string]int, len(c.Pages))
	for i := range c.Pages {
		pg := &c.Pages[i]
		pg.Route = norm.NFC.String(strings.TrimSpace(pg.Route))
		pg.Entry = norm.NFC.String(filepath.ToSlash(strings.TrimSpace(pg.Entry)))
		if pg.Route != "/" {
			pg.Route = strings.TrimSuffix(pg.Route, "/")
		}

		switch {
		case !strings.HasPrefix(pg.Route, "/"):
			errs = append(errs, diag.Errorf(diag.BuildConfig, c.Path, "pages[%d]: route %q must start with '/'", i, pg.Route))
			continue
		case path.Clean(pg.Route) != pg.Route:
			errs = append(errs, diag.Errorf(diag.BuildConfig, c.Path, "pages[%d]: route %q is not a clean path", i, pg.Route))
			continue
		}
		if prev, dup := seen[pg.Route]; dup {
			errs = append(errs, diag.Errorf(diag.BuildConfig, c.Path, "pages[%d]: route %q already declared by pages[%d]", i, pg.Route, prev))
			continue
		}
		seen[pg.Route] = i

		if pg.Entry == "" {
			errs = append(errs, diag.Errorf(diag.BuildConfig, c.Path, "pages[%d]: entry is required", i).WithRoute(pg.Route))
			continue
		}
		pg.Entry = strings.TrimPrefix(path.Clean(pg.Entry), "./")
		if path.IsAbs(pg.Entry) || pg.Entry == ".." || strings.HasPrefix(pg.Entry, "../") {
			errs = append(errs, diag.Errorf(diag.BuildConfig, c.Path, "pages[%d]: entry %q must be inside build.root", i, pg.Entry).WithRoute(pg.Route))
		}
	}
	return errors.Join(errs...)
}

// Dir is the directory relative paths are resolved against.
func (c Config) Dir() string {
	if c.Path == "" {
		return "."
	}
	return filepath.Dir(c.Path)
}

// RootDir is the absolute-or-relative source root.
func (c Config) RootDir() string {
	return c.resolve(c.Build.Root)
}

// OutPath is the build output directory.
func (c Config) OutPath() string {
	return c.resolve(c.Build.OutDir)
}

// CachePath is the extraction cache directory, or "" for the user cache.
func (c Config) CachePath() string {
	if c.Build.CacheDir == "" {
		return ""
	}
	return c.resolve(c.Build.CacheDir)
}

func (c Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Dir(), filepath.FromSlash(p))
}

// Page returns the page declared for route.
func (c Config) Page(route string) (Page, bool) {
	route = norm.NFC.String(route)
	for _, pg := range c.Pages {
		if pg.Route == route {
			return pg, true
		}
	}
	return Page{}, false
}

func (p Page) String() string {
	return fmt.Sprintf("%s -> %s (%s)", p.Route, p.Entry, p.Runtime)
}
