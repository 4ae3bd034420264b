package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "from-env")
	var s sample
	if err := Parse([]byte("name: ${SAMPLE_NAME}\nport: 8080\n"), &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "from-env" || s.Port != 8080 {
		t.Errorf("got %+v", s)
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	var s sample
	err := Parse([]byte("name: x\nport: 1\nextra: true\n"), &s)
	if err == nil || !strings.Contains(err.Error(), "extra") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestParse_KeepsDefaultsAndValidates(t *testing.T) {
	s := sample{Name: "default", Port: 9000}
	if err := Parse([]byte(""), &s); err != nil {
		t.Fatalf("empty document should keep defaults: %v", err)
	}
	if s.Name != "default" || s.Port != 9000 {
		t.Errorf("defaults lost: %+v", s)
	}

	if err := Parse([]byte("port: 0\n"), &s); err == nil {
		t.Error("expected validation failure")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, "default.yaml")
	if err := os.WriteFile(fallback, []byte("name: fallback\nport: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var s sample
	if err := LoadWithDefaults(filepath.Join(dir, "missing.yaml"), fallback, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "fallback" {
		t.Errorf("name = %q", s.Name)
	}
	if err := LoadWithDefaults(filepath.Join(dir, "missing.yaml"), "", &s); err == nil {
		t.Error("expected error without fallback")
	}
}
