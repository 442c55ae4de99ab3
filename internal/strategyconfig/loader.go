package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/exitlab/internal/backtest"
	"github.com/wonny/exitlab/internal/exit"
	"github.com/wonny/exitlab/internal/live"
)

// Load reads a YAML strategy over Defaults. An empty path returns the defaults.
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil, Validate(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read strategy: %w", err)
	}

	cfg, err = Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes YAML over Defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode strategy: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map은 encoding/json이 키 순서로 직렬화하므로 재현성 유지
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewDecisionSnapshot records the exact strategy of a run
func NewDecisionSnapshot(cfg *Config, yamlData []byte) (*DecisionSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &DecisionSnapshot{
		ConfigHash: hash,
		ConfigYAML: string(yamlData),
		StrategyID: cfg.Meta.StrategyID,
		CreatedAt:  time.Now(),
	}, nil
}

// Location resolves Meta.Timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Meta.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Meta.Timezone)
}

// EngineConfig maps the grid settings onto the sweep engine
func (c *Config) EngineConfig() backtest.Config {
	cfg := backtest.DefaultConfig()
	cfg.TopK = c.Grid.TopK
	cfg.ReasonsSample = c.Grid.ReasonsSample
	if c.Grid.Workers > 0 {
		cfg.Workers = c.Grid.Workers
	}
	cfg.MonteCarlo = c.MonteCarlo
	if cfg.MonteCarlo.Workers <= 0 {
		cfg.MonteCarlo.Workers = runtime.NumCPU()
	}
	return cfg
}

// LiveOptions maps the live settings onto the controller
func (c *Config) LiveOptions() (live.Options, error) {
	if c.Live.TrailMode == "" {
		return live.Options{TrailMode: exit.TrailPriceAnchored, SymbolDigits: c.Live.SymbolDigits}, nil
	}
	mode, err := exit.ParseTrailMode(c.Live.TrailMode)
	if err != nil {
		return live.Options{}, err
	}
	return live.Options{TrailMode: mode, SymbolDigits: c.Live.SymbolDigits}, nil
}

// Sessions builds the live trading session gate
func (c *Config) Sessions() (*live.Sessions, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return live.NewSessions(c.Live.Sessions, loc)
}
