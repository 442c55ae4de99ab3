package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wonny/exitlab/internal/contracts"
)

// ErrNoParams is returned when an artifact holds no parameter block
var ErrNoParams = errors.New("no exit parameter block found")

// Section titles of the best-config artifact
const (
	titleParams     = "Best Exit Parameters"
	titleMetrics    = "Metrics (grid):"
	titleMonteCarlo = "Monte Carlo MaxDD (R):"
)

// BestConfig is the content of the best-config artifact
type BestConfig struct {
	Params     contracts.ExitParams
	Metrics    contracts.Metrics
	MonteCarlo contracts.MaxDDPercentiles
}

// Write renders the artifact: the parameter block first, then grid metrics
// and the Monte Carlo summary, each as indented JSON under its title.
func (b BestConfig) Write(w io.Writer) error {
	sections := []struct {
		title string
		value interface{}
	}{
		{titleParams, b.Params},
		{titleMetrics, b.Metrics},
		{titleMonteCarlo, b.MonteCarlo},
	}

	var buf bytes.Buffer
	for i, s := range sections {
		raw, err := json.MarshalIndent(s.value, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %q: %w", s.title, err)
		}
		if i > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(s.title)
		buf.WriteByte('\n')
		buf.Write(raw)
	}
	buf.WriteByte('\n')

	_, err := w.Write(buf.Bytes())
	return err
}

// Save writes the artifact to path
func (b BestConfig) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create best config: %w", err)
	}
	if err := b.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("write best config: %w", err)
	}
	return f.Close()
}

// LoadParams reads the parameter block of the artifact at path
func LoadParams(path string) (contracts.ExitParams, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return contracts.ExitParams{}, fmt.Errorf("read best config: %w", err)
	}
	return ParseParams(raw)
}

// ParseParams returns the first well-formed JSON object in text whose keys
// are a non-empty subset of contracts.ExitParamKeys. Missing or null keys
// keep their defaults.
func ParseParams(text []byte) (contracts.ExitParams, error) {
	known := make(map[string]bool, len(contracts.ExitParamKeys))
	for _, k := range contracts.ExitParamKeys {
		known[k] = true
	}

	for off := 0; off < len(text); off++ {
		if text[off] != '{' {
			continue
		}

		var block map[string]json.RawMessage
		dec := json.NewDecoder(bytes.NewReader(text[off:]))
		if err := dec.Decode(&block); err != nil || len(block) == 0 {
			continue
		}
		if !keysWithin(block, known) {
			continue
		}

		params := contracts.DefaultExitParams()
		end := off + int(dec.InputOffset())
		if err := json.Unmarshal(text[off:end], &params); err != nil {
			continue
		}
		if err := params.Validate(); err != nil {
			return contracts.ExitParams{}, fmt.Errorf("invalid parameter block: %w", err)
		}
		return params, nil
	}

	return contracts.ExitParams{}, ErrNoParams
}

func keysWithin(block map[string]json.RawMessage, known map[string]bool) bool {
	for k := range block {
		if !known[k] {
			return false
		}
	}
	return true
}
