package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/cadview/internal/logging"
	"github.com/danmuck/cadview/internal/protocol/envelope"
	"github.com/danmuck/cadview/internal/render"
	"github.com/danmuck/cadview/internal/runtime"
	"github.com/danmuck/cadview/internal/snapshot"
)

type Config struct {
	Envelope EnvelopeConfig `toml:"envelope" yaml:"envelope"`
	Runtime  RuntimeConfig  `toml:"runtime" yaml:"runtime"`
	Render   map[string]any `toml:"render" yaml:"render"`
	View     map[string]any `toml:"view" yaml:"view"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Snapshot SnapshotConfig `toml:"snapshot" yaml:"snapshot"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

type EnvelopeConfig struct {
	Marker   string `toml:"marker" yaml:"marker"`
	Lenient  bool   `toml:"lenient" yaml:"lenient"`
	MaxBytes int    `toml:"max_bytes" yaml:"max_bytes"`
}

type RuntimeConfig struct {
	SceneKind string `toml:"scene_kind" yaml:"scene_kind"`
}

type ServerConfig struct {
	Addr        string   `toml:"addr" yaml:"addr"`
	CorsOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
}

type SnapshotConfig struct {
	// Path is empty when snapshots are disabled.
	Path        string `toml:"path" yaml:"path"`
	Compression string `toml:"compression" yaml:"compression"`
}

type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

func Default() Config {
	env := envelope.DefaultOptions()
	return Config{
		Envelope: EnvelopeConfig{Marker: env.Marker, Lenient: env.Lenient, MaxBytes: env.MaxBytes},
		Runtime:  RuntimeConfig{SceneKind: runtime.DefaultSceneKind},
		Render:   map[string]any(render.DefaultRenderOptions()),
		View:     map[string]any(render.DefaultViewOptions()),
		Server: ServerConfig{
			Addr:        ":8765",
			CorsOrigins: []string{"http://localhost:3000"},
		},
		Snapshot: SnapshotConfig{Compression: "zstd"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. Files ending in .yaml or .yml are YAML;
// everything else is TOML.
func Load(path string) (Config, error) {
	var (
		cfg Config
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = loadYAML(path)
	default:
		cfg, err = loadTOML(path)
	}
	if err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

type fileConfig struct {
	Envelope EnvelopeConfig `toml:"envelope"`
	Runtime  RuntimeConfig  `toml:"runtime"`
	Render   map[string]any `toml:"render"`
	View     map[string]any `toml:"view"`
	Server   ServerConfig   `toml:"server"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Log      LogConfig      `toml:"log"`
}

func loadTOML(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("envelope", "marker") {
		cfg.Envelope.Marker = raw.Envelope.Marker
	}
	if meta.IsDefined("envelope", "lenient") {
		cfg.Envelope.Lenient = raw.Envelope.Lenient
	}
	if meta.IsDefined("envelope", "max_bytes") {
		cfg.Envelope.MaxBytes = raw.Envelope.MaxBytes
	}
	if meta.IsDefined("runtime", "scene_kind") {
		cfg.Runtime.SceneKind = strings.TrimSpace(raw.Runtime.SceneKind)
	}
	if meta.IsDefined("render") {
		cfg.Render = overlay(cfg.Render, raw.Render)
	}
	if meta.IsDefined("view") {
		cfg.View = overlay(cfg.View, raw.View)
	}
	if meta.IsDefined("server", "addr") {
		cfg.Server.Addr = strings.TrimSpace(raw.Server.Addr)
	}
	if meta.IsDefined("server", "cors_origins") {
		cfg.Server.CorsOrigins = normalizeList(raw.Server.CorsOrigins)
	}
	if meta.IsDefined("snapshot", "path") {
		cfg.Snapshot.Path = strings.TrimSpace(raw.Snapshot.Path)
	}
	if meta.IsDefined("snapshot", "compression") {
		cfg.Snapshot.Compression = strings.TrimSpace(raw.Snapshot.Compression)
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %s", path, undecoded[0])
	}
	return cfg, nil
}

func loadYAML(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var raw Config
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	// Unmarshal into a second document to learn which keys were set; zero
	// values in raw are otherwise indistinguishable from absent keys.
	var present map[string]map[string]any
	if err := yaml.Unmarshal(data, &present); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	isSet := func(section, key string) bool {
		s, ok := present[section]
		if !ok {
			return false
		}
		_, ok = s[key]
		return ok
	}

	cfg := Default()
	if isSet("envelope", "marker") {
		cfg.Envelope.Marker = raw.Envelope.Marker
	}
	if isSet("envelope", "lenient") {
		cfg.Envelope.Lenient = raw.Envelope.Lenient
	}
	if isSet("envelope", "max_bytes") {
		cfg.Envelope.MaxBytes = raw.Envelope.MaxBytes
	}
	if isSet("runtime", "scene_kind") {
		cfg.Runtime.SceneKind = strings.TrimSpace(raw.Runtime.SceneKind)
	}
	cfg.Render = overlay(cfg.Render, raw.Render)
	cfg.View = overlay(cfg.View, raw.View)
	if isSet("server", "addr") {
		cfg.Server.Addr = strings.TrimSpace(raw.Server.Addr)
	}
	if isSet("server", "cors_origins") {
		cfg.Server.CorsOrigins = normalizeList(raw.Server.CorsOrigins)
	}
	if isSet("snapshot", "path") {
		cfg.Snapshot.Path = strings.TrimSpace(raw.Snapshot.Path)
	}
	if isSet("snapshot", "compression") {
		cfg.Snapshot.Compression = strings.TrimSpace(raw.Snapshot.Compression)
	}
	if isSet("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if cfg.Envelope.MaxBytes < 0 {
		return fmt.Errorf("envelope.max_bytes must be >= 0")
	}
	if strings.Contains(cfg.Envelope.Marker, "{") {
		return fmt.Errorf("envelope.marker must not contain '{'")
	}
	if strings.TrimSpace(cfg.Runtime.SceneKind) == "" {
		return fmt.Errorf("runtime.scene_kind is required")
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := snapshot.ParseCompression(cfg.Snapshot.Compression); err != nil {
		return fmt.Errorf("snapshot.compression: %w", err)
	}
	if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("log.level unknown: %q", cfg.Log.Level)
	}
	return nil
}

func overlay(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
