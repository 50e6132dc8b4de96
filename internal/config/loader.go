package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"vehiclelookup/internal/attributes"
	"vehiclelookup/internal/scheduler"
)

// Defaults for the options file, matching the scheduler defaults.
const (
	DefaultDebounceSeconds = 15
	DefaultFallbackSeconds = 60

	optionsFileMode = 0644

	// reloadDelay coalesces the burst of events produced by one save.
	reloadDelay = 100 * time.Millisecond
)

// CustomAttribute declares an extra attribute read from a dotted path such
// as "godkjenning.tekniskGodkjenning.tekniskeData.dekkOgFelg".
type CustomAttribute struct {
	Key  string `yaml:"key" json:"key"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	Path string `yaml:"path" json:"path"`
	Icon string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Unit string `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// Options represents the options.yaml structure. Absent timer fields use
// the defaults; an explicit 0 disables the timer.
type Options struct {
	DebounceSeconds    *int              `yaml:"debounce_seconds,omitempty" json:"debounce_seconds,omitempty"`
	FallbackSeconds    *int              `yaml:"fallback_lookup_seconds,omitempty" json:"fallback_lookup_seconds,omitempty"`
	EnabledAttributes  []string          `yaml:"enabled_attributes,omitempty" json:"enabled_attributes,omitempty"`
	DisabledAttributes []string          `yaml:"disabled_attributes,omitempty" json:"disabled_attributes,omitempty"`
	CustomAttributes   []CustomAttribute `yaml:"custom_attributes,omitempty" json:"custom_attributes,omitempty"`
}

// Debounce returns the effective debounce in seconds.
func (o *Options) Debounce() int {
	if o.DebounceSeconds == nil {
		return DefaultDebounceSeconds
	}
	return *o.DebounceSeconds
}

// Fallback returns the effective fallback in seconds.
func (o *Options) Fallback() int {
	if o.FallbackSeconds == nil {
		return DefaultFallbackSeconds
	}
	return *o.FallbackSeconds
}

// SchedulerOptions converts the timer settings.
func (o *Options) SchedulerOptions() scheduler.Options {
	return scheduler.Options{
		Debounce: time.Duration(o.Debounce()) * time.Second,
		Fallback: time.Duration(o.Fallback()) * time.Second,
	}
}

// Definitions resolves the attribute overrides against the built-in set.
func (o *Options) Definitions() ([]attributes.Definition, error) {
	custom := make([]attributes.Custom, 0, len(o.CustomAttributes))
	for _, c := range o.CustomAttributes {
		custom = append(custom, attributes.Custom{
			Key:  c.Key,
			Name: c.Name,
			Path: c.Path,
			Icon: c.Icon,
			Unit: c.Unit,
		})
	}
	return attributes.Resolve(o.EnabledAttributes, o.DisabledAttributes, custom)
}

// Validate checks timer ranges and attribute overrides.
func (o *Options) Validate() error {
	if err := o.SchedulerOptions().Validate(); err != nil {
		return err
	}
	if _, err := o.Definitions(); err != nil {
		return err
	}
	return nil
}

func (o *Options) clone() *Options {
	c := *o
	if o.DebounceSeconds != nil {
		v := *o.DebounceSeconds
		c.DebounceSeconds = &v
	}
	if o.FallbackSeconds != nil {
		v := *o.FallbackSeconds
		c.FallbackSeconds = &v
	}
	c.EnabledAttributes = append([]string(nil), o.EnabledAttributes...)
	c.DisabledAttributes = append([]string(nil), o.DisabledAttributes...)
	c.CustomAttributes = append([]CustomAttribute(nil), o.CustomAttributes...)
	return &c
}

// ParseOptions decodes and validates an options document.
func ParseOptions(data []byte) (*Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("failed to parse options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return &opts, nil
}

// Loader manages loading, saving and reloading of the options file.
type Loader struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	options *Options

	listenersMu sync.Mutex
	listeners   []func(*Options)
}

// NewLoader creates a new options loader. Options start at the defaults
// until Load is called.
func NewLoader(path string, logger *zap.Logger) *Loader {
	return &Loader{
		path:    path,
		logger:  logger.Named("config"),
		options: &Options{},
	}
}

// Path returns the options file path.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the options file. A missing file means defaults. On error
// the previous options stay active.
func (l *Loader) Load() error {
	l.logger.Debug("Loading options", zap.String("path", l.path))

	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		l.logger.Info("No options file, using defaults", zap.String("path", l.path))
		l.apply(&Options{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read options: %w", err)
	}

	opts, err := ParseOptions(data)
	if err != nil {
		return err
	}

	l.apply(opts)
	return nil
}

// Options returns a copy of the active options.
func (l *Loader) Options() *Options {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.options.clone()
}

// Save validates opts, writes them to the options file and applies them.
func (l *Loader) Save(opts *Options) error {
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create options directory: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, optionsFileMode); err != nil {
		return fmt.Errorf("failed to write options: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace options: %w", err)
	}

	l.apply(opts.clone())
	return nil
}

// OnChange registers fn to run whenever the active options change.
func (l *Loader) OnChange(fn func(*Options)) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	l.listeners = append(l.listeners, fn)
}

func (l *Loader) apply(opts *Options) {
	l.mu.Lock()
	if reflect.DeepEqual(l.options, opts) {
		l.mu.Unlock()
		return
	}
	l.options = opts
	l.mu.Unlock()

	l.logger.Info("Options loaded",
		zap.Int("debounce_seconds", opts.Debounce()),
		zap.Int("fallback_lookup_seconds", opts.Fallback()),
		zap.Int("custom_attributes", len(opts.CustomAttributes)))

	l.listenersMu.Lock()
	listeners := append(([]func(*Options))(nil), l.listeners...)
	l.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(opts.clone())
	}
}

// Watch reloads the options file whenever it changes on disk. The parent
// directory is watched so editors that replace the file are seen too.
// Blocks until ctx is cancelled.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create options directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	l.logger.Info("Watching options file", zap.String("path", l.path))
	target := filepath.Clean(l.path)

	var reload <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping options watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher event channel closed")
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				l.logger.Debug("Options file changed", zap.String("op", event.Op.String()))
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(reloadDelay)
				reload = timer.C
			}

		case <-reload:
			reload = nil
			l.logger.Info("Reloading options")
			if err := l.Load(); err != nil {
				l.logger.Error("Failed to reload options", zap.Error(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			l.logger.Error("Options watcher error", zap.Error(err))
		}
	}
}
