package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml"

	"expensedash/internal/core"
)

// Profile is the on-disk CLI configuration.
//
//	[api]
//	base_url = "http://localhost:8000/api"
//	timeout = "30s"
//
//	[session]
//	db_path = "/home/me/.config/expensectl/session.db"
//	namespace = "default"
//
//	[display]
//	locale = "en-GB"
//	enable_create = false
type Profile struct {
	API     APIProfile     `toml:"api"`
	Session SessionProfile `toml:"session"`
	Display DisplayProfile `toml:"display"`
}

type APIProfile struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

type SessionProfile struct {
	DBPath    string `toml:"db_path"`
	Namespace string `toml:"namespace"`
}

type DisplayProfile struct {
	Locale       string `toml:"locale"`
	EnableCreate bool   `toml:"enable_create"`
}

func defaultProfile(dir string) Profile {
	return Profile{
		API:     APIProfile{BaseURL: "http://localhost:8000/api", Timeout: "30s"},
		Session: SessionProfile{DBPath: filepath.Join(dir, "session.db"), Namespace: "default"},
		Display: DisplayProfile{Locale: "en-US"},
	}
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".expensectl"
	}
	return filepath.Join(dir, "expensectl")
}

// loadProfile reads path over the defaults. A missing file is not an error.
func loadProfile(path string) (Profile, error) {
	p := defaultProfile(filepath.Dir(path))
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	var file Profile
	if err := toml.Unmarshal(data, &file); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	p.merge(file)
	return p, p.validate()
}

// merge overlays the values set in o.
func (p *Profile) merge(o Profile) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.API.BaseURL, o.API.BaseURL)
	set(&p.API.Timeout, o.API.Timeout)
	set(&p.Session.DBPath, o.Session.DBPath)
	set(&p.Session.Namespace, o.Session.Namespace)
	set(&p.Display.Locale, o.Display.Locale)
	if o.Display.EnableCreate {
		p.Display.EnableCreate = true
	}
}

func (p Profile) validate() error {
	if p.API.BaseURL == "" {
		return errors.New("profile: api.base_url is required")
	}
	if _, err := p.timeout(); err != nil {
		return err
	}
	if p.Session.DBPath == "" {
		return errors.New("profile: session.db_path is required")
	}
	return nil
}

// timeout parses api.timeout; empty or "0" disables it.
func (p Profile) timeout() (time.Duration, error) {
	if p.API.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.API.Timeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("profile: invalid api.timeout %q", p.API.Timeout)
	}
	return d, nil
}

func (p Profile) locale() core.Locale {
	return core.LookupLocale(p.Display.Locale)
}

// save writes the profile, creating its directory.
func (p Profile) save(path string) error {
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
