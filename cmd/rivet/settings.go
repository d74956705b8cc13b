package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"rivet/internal/project"
)

// settings is the effective configuration of one command: rivet.toml, then
// RIVET_* environment variables, then flags.
type settings struct {
	Project project.Config

	LogLevel   string
	Quiet      bool
	Timings    bool
	Trace      string
	TraceLevel string
	TraceMode  string

	TraceRingSize  int
	TraceHeartbeat time.Duration
}

// flagKeys maps viper keys to the flag that overrides them. Flags missing on
// a command are skipped.
var flagKeys = map[string]string{
	"log_level":             "log-level",
	"quiet":                 "quiet",
	"timings":               "timings",
	"trace":                 "trace",
	"trace_level":           "trace-level",
	"trace_mode":            "trace-mode",
	"trace_ring_size":       "trace-ring-size",
	"trace_heartbeat":       "trace-heartbeat",
	"build.out_dir":         "out",
	"build.jobs":            "jobs",
	"build.route_manifests": "route-manifests",
	"build.cache_dir":       "cache-dir",
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	cfg, err := loadProject(cmd)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("RIVET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("build.out_dir", cfg.Build.OutDir)
	v.SetDefault("build.jobs", cfg.Build.Jobs)
	v.SetDefault("build.cache", cfg.Build.Cache)
	v.SetDefault("build.cache_dir", cfg.Build.CacheDir)
	v.SetDefault("build.actions", cfg.Build.Actions)
	v.SetDefault("build.route_manifests", cfg.Build.RouteManifests)
	v.SetDefault("log_level", "")
	v.SetDefault("quiet", false)
	v.SetDefault("timings", false)
	v.SetDefault("trace", "")
	v.SetDefault("trace_level", "off")
	v.SetDefault("trace_mode", "")
	v.SetDefault("trace_ring_size", 4096)
	v.SetDefault("trace_heartbeat", time.Duration(0))

	for key, name := range flagKeys {
		if f := lookupFlag(cmd, name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}
	// --no-cache is the inverse of build.cache
	if f := lookupFlag(cmd, "no-cache"); f != nil && f.Changed {
		v.Set("build.cache", f.Value.String() != "true")
	}

	cfg.Build.OutDir = v.GetString("build.out_dir")
	cfg.Build.Jobs = v.GetInt("build.jobs")
	cfg.Build.Cache = v.GetBool("build.cache")
	cfg.Build.CacheDir = v.GetString("build.cache_dir")
	cfg.Build.Actions = v.GetBool("build.actions")
	cfg.Build.RouteManifests = v.GetBool("build.route_manifests")
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	return &settings{
		Project:    cfg,
		LogLevel:   v.GetString("log_level"),
		Quiet:      v.GetBool("quiet"),
		Timings:    v.GetBool("timings"),
		Trace:      v.GetString("trace"),
		TraceLevel: v.GetString("trace_level"),
		TraceMode:  v.GetString("trace_mode"),

		TraceRingSize:  v.GetInt("trace_ring_size"),
		TraceHeartbeat: v.GetDuration("trace_heartbeat"),
	}, nil
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}

// loadProject reads --project, or the nearest rivet.toml above the working
// directory. Without one the defaults apply relative to the working directory.
func loadProject(cmd *cobra.Command) (project.Config, error) {
	var target string
	if f := lookupFlag(cmd, "project"); f != nil {
		target = f.Value.String()
	}
	if target == "" {
		wd, err := os.Getwd()
		if err != nil {
			return project.Config{}, err
		}
		p, ok, err := project.FindManifest(wd)
		if err != nil {
			return project.Config{}, err
		}
		if !ok {
			return project.Default(), nil
		}
		return project.Load(p)
	}
	info, err := os.Stat(target)
	if err != nil {
		return project.Config{}, fmt.Errorf("project: %w", err)
	}
	if info.IsDir() {
		target = filepath.Join(target, project.ManifestName)
	}
	return project.Load(target)
}
