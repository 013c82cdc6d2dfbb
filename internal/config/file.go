package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Load starts from Default and merges the file at path, then its
// "<name>.local.<ext>" sibling, each overriding non-empty values.
// When required is false a missing file leaves the defaults untouched.
//
// mergo skips zero values, so "showui: false" or "max_scrolls: 0" would be
// dropped by the merge alone. Those fields are decoded a second time into
// explicit and written back after the merge.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	fromFile, set, err := readFiles(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := mergo.Merge(&cfg, fromFile, mergo.WithOverride); err != nil {
		return cfg, fmt.Errorf("failed to merge config %s: %w", path, err)
	}
	set.apply(&cfg)
	return cfg, nil
}

// LocalPath returns the override file that sits next to path.
func LocalPath(path string) string {
	dir, base := filepath.Dir(path), filepath.Base(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+".local"+ext)
}

// explicit holds the fields whose zero value is a real setting. A nil
// pointer means the key was absent from every file.
type explicit struct {
	ShowUI     *bool `json:"showui"`
	ScrollStep *int  `json:"scroll_step"`
	MaxScrolls *int  `json:"max_scrolls"`
	MaxStall   *int  `json:"max_stall"`
}

// over copies the keys present in o onto e.
func (e *explicit) over(o explicit) {
	if o.ShowUI != nil {
		e.ShowUI = o.ShowUI
	}
	if o.ScrollStep != nil {
		e.ScrollStep = o.ScrollStep
	}
	if o.MaxScrolls != nil {
		e.MaxScrolls = o.MaxScrolls
	}
	if o.MaxStall != nil {
		e.MaxStall = o.MaxStall
	}
}

func (e explicit) apply(c *Config) {
	if e.ShowUI != nil {
		c.ShowUI = *e.ShowUI
	}
	if e.ScrollStep != nil {
		c.ScrollStep = *e.ScrollStep
	}
	if e.MaxScrolls != nil {
		c.MaxScrolls = *e.MaxScrolls
	}
	if e.MaxStall != nil {
		c.MaxStall = *e.MaxStall
	}
}

func decode(data []byte) (Config, explicit, error) {
	var (
		cfg Config
		set explicit
	)
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return cfg, set, err
	}
	if err := json5.Unmarshal(data, &set); err != nil {
		return cfg, set, err
	}
	return cfg, set, nil
}

func readFiles(path string) (Config, explicit, error) {
	var (
		out Config
		set explicit
	)
	found := false

	base, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return out, set, err
	}
	if len(base) > 0 {
		if out, set, err = decode(base); err != nil {
			return out, set, err
		}
		found = true
	}

	local := LocalPath(path)
	overrides, err := os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, set, err
	}
	if len(overrides) > 0 {
		override, localSet, err := decode(overrides)
		if err != nil {
			return out, set, err
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, set, err
		}
		set.over(localSet)
		slog.Debug("merging config with local overrides", slog.String("local", local))
		found = true
	}

	if !found {
		return out, set, os.ErrNotExist
	}
	return out, set, nil
}
