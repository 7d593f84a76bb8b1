package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/vaultsandbox/fundvault"
	"github.com/vaultsandbox/fundvault/internal/crypto"
)

// Settings is the fundvault settings file.
type Settings struct {
	// DataDir holds vault records in badger. Empty keeps them in memory.
	DataDir string `yaml:"data_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Program is the name the vault program registers under.
	Program string `yaml:"program"`

	// EngineKey is a base64 ML-KEM secret key from "fundvault keygen".
	// Empty generates a fresh key per process.
	EngineKey string `yaml:"engine_key"`

	Commit CommitSettings `yaml:"commit"`
}

// CommitSettings tunes the compare-and-commit loop.
type CommitSettings struct {
	// BaseDelay and MaxDelay are Go durations, e.g. "2ms".
	BaseDelay string `yaml:"base_delay"`
	MaxDelay  string `yaml:"max_delay"`

	// MaxAttempts bounds commit attempts. Zero retries until success.
	MaxAttempts int `yaml:"max_attempts"`
}

// DefaultSettings returns settings for an in-memory simulation.
func DefaultSettings() *Settings {
	return &Settings{
		LogLevel: "warn",
		Program:  fundvault.ProgramName,
		Commit: CommitSettings{
			BaseDelay: "1ms",
			MaxDelay:  "50ms",
		},
	}
}

// LoadSettings reads path over the defaults. ${VAR} references in
// data_dir are expanded.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	s.DataDir = os.ExpandEnv(s.DataDir)
	return s, nil
}

// Validate checks every field that is parsed lazily.
func (s *Settings) Validate() error {
	if _, err := zapcore.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if s.Program == "" {
		return fmt.Errorf("program: empty name")
	}
	if _, err := s.engineKeypair(); err != nil {
		return fmt.Errorf("engine_key: %w", err)
	}
	if _, _, err := s.Commit.delays(); err != nil {
		return err
	}
	if s.Commit.MaxAttempts < 0 {
		return fmt.Errorf("commit.max_attempts: %d is negative", s.Commit.MaxAttempts)
	}
	return nil
}

func (c CommitSettings) delays() (base, max time.Duration, err error) {
	if base, err = time.ParseDuration(c.BaseDelay); err != nil {
		return 0, 0, fmt.Errorf("commit.base_delay: %w", err)
	}
	if max, err = time.ParseDuration(c.MaxDelay); err != nil {
		return 0, 0, fmt.Errorf("commit.max_delay: %w", err)
	}
	if base <= 0 || max < base {
		return 0, 0, fmt.Errorf("commit: need 0 < base_delay <= max_delay, got %s and %s", base, max)
	}
	return base, max, nil
}

func (s *Settings) engineKeypair() (*crypto.Keypair, error) {
	if s.EngineKey == "" {
		return nil, nil
	}
	secret, err := crypto.DecodeBase64(s.EngineKey)
	if err != nil {
		return nil, err
	}
	return crypto.KeypairFromSecretKey(secret)
}

// managerOptions translates the settings into manager options.
func (s *Settings) managerOptions(logger *zap.Logger) []fundvault.Option {
	base, max, _ := s.Commit.delays()
	return []fundvault.Option{
		fundvault.WithLogger(logger),
		fundvault.WithProgramName(s.Program),
		fundvault.WithCommitBackoff(base, max),
		fundvault.WithMaxCommitAttempts(s.Commit.MaxAttempts),
	}
}
