package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type App struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogLvl  string `yaml:"log_level"`
}
type API struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}
type Inference struct {
	URL            string `yaml:"url"`
	ModelURL       string `yaml:"model_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}
type Capture struct {
	Source      string `yaml:"source"` // "dir" or "snapshot"
	Dir         string `yaml:"dir"`
	SnapshotURL string `yaml:"snapshot_url"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
}
type Sampler struct {
	SaveIntervalMs  int `yaml:"save_interval_ms"`
	FrameIntervalMs int `yaml:"frame_interval_ms"`
}
type Display struct {
	Listen string `yaml:"listen"` // empty: no display server
}
type Root struct {
	App       App       `yaml:"app"`
	API       API       `yaml:"api"`
	Inference Inference `yaml:"inference"`
	Capture   Capture   `yaml:"capture"`
	Sampler   Sampler   `yaml:"sampler"`
	Display   Display   `yaml:"display"`
	Paths     struct {
		Outputs     string `yaml:"outputs"`
		Credentials string `yaml:"credentials"`
	} `yaml:"paths"`
}

// Default is the configuration used when no file is found.
func Default() *Root {
	var c Root
	c.applyDefaults()
	return &c
}

func (c *Root) applyDefaults() {
	def := func(p *string, v string) {
		if *p == "" {
			*p = v
		}
	}
	defInt := func(p *int, v int) {
		if *p == 0 {
			*p = v
		}
	}
	def(&c.App.Name, "moodcam")
	def(&c.App.LogLvl, "info")
	def(&c.API.BaseURL, "http://127.0.0.1:5000/api")
	defInt(&c.API.TimeoutSeconds, 10)
	def(&c.Inference.URL, "http://127.0.0.1:8001")
	def(&c.Inference.ModelURL, "https://cdn.jsdelivr.net/npm/@vladmandic/face-api/model/")
	defInt(&c.Inference.TimeoutSeconds, 10)
	def(&c.Capture.Source, "dir")
	def(&c.Capture.Dir, "frames")
	defInt(&c.Capture.Width, 1280)
	defInt(&c.Capture.Height, 720)
	defInt(&c.Sampler.SaveIntervalMs, 5000)
	defInt(&c.Sampler.FrameIntervalMs, 33)
	def(&c.Paths.Outputs, "outputs")
	if c.Paths.Credentials == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		c.Paths.Credentials = filepath.Join(dir, "moodcam", "credentials.yaml")
	}
}

func (c *Root) Validate() error {
	var errs []error
	if c.Sampler.SaveIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("sampler.save_interval_ms must be positive, got %d", c.Sampler.SaveIntervalMs))
	}
	if c.Sampler.FrameIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("sampler.frame_interval_ms must be positive, got %d", c.Sampler.FrameIntervalMs))
	}
	switch c.Capture.Source {
	case "dir":
		if c.Capture.Dir == "" {
			errs = append(errs, errors.New("capture.dir is required for the dir source"))
		}
	case "snapshot":
		if c.Capture.SnapshotURL == "" {
			errs = append(errs, errors.New("capture.snapshot_url is required for the snapshot source"))
		}
	default:
		errs = append(errs, fmt.Errorf("capture.source %q: want dir or snapshot", c.Capture.Source))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	return errors.Join(errs...)
}

// Load reads path, or when path is empty the first file found under
// config/<CONFIG_ENV>/config.yaml (env defaults to dev) and ./config.yaml.
// No file at all is not an error: defaults apply.
func Load(path string) (*Root, error) {
	guess := []string{path}
	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		guess = []string{
			filepath.Join("config", env, "config.yaml"),
			"config.yaml",
		}
	}
	for _, p := range guess {
		f, err := os.Open(p)
		if errors.Is(err, os.ErrNotExist) && path == "" {
			continue
		}
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var cfg Root
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", p, err)
		}
		cfg.applyDefaults()
		return &cfg, nil
	}
	return Default(), nil
}

// Overlay copies every key set in v (flag or MOODCAM_* env) over c. Keys
// use the yaml paths, e.g. "api.base_url".
func (c *Root) Overlay(v *viper.Viper) {
	str := map[string]*string{
		"app.log_level":        &c.App.LogLvl,
		"api.base_url":         &c.API.BaseURL,
		"inference.url":        &c.Inference.URL,
		"inference.model_url":  &c.Inference.ModelURL,
		"capture.source":       &c.Capture.Source,
		"capture.dir":          &c.Capture.Dir,
		"capture.snapshot_url": &c.Capture.SnapshotURL,
		"display.listen":       &c.Display.Listen,
		"paths.outputs":        &c.Paths.Outputs,
		"paths.credentials":    &c.Paths.Credentials,
	}
	for k, p := range str {
		if v.IsSet(k) {
			*p = v.GetString(k)
		}
	}
	ints := map[string]*int{
		"api.timeout_seconds":       &c.API.TimeoutSeconds,
		"inference.timeout_seconds": &c.Inference.TimeoutSeconds,
		"capture.width":             &c.Capture.Width,
		"capture.height":            &c.Capture.Height,
		"sampler.save_interval_ms":  &c.Sampler.SaveIntervalMs,
		"sampler.frame_interval_ms": &c.Sampler.FrameIntervalMs,
	}
	for k, p := range ints {
		if v.IsSet(k) {
			*p = v.GetInt(k)
		}
	}
}

// EnvKeys lists the keys Overlay understands, for viper.BindEnv.
func EnvKeys() []string {
	return []string{
		"app.log_level", "api.base_url", "api.timeout_seconds",
		"inference.url", "inference.model_url", "inference.timeout_seconds",
		"capture.source", "capture.dir", "capture.snapshot_url", "capture.width", "capture.height",
		"sampler.save_interval_ms", "sampler.frame_interval_ms",
		"display.listen", "paths.outputs", "paths.credentials",
	}
}

func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func Millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
