package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/ibmruntimes/aotverify/internal/harness"
	"github.com/ibmruntimes/aotverify/internal/rtenv"
)

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E002" // Input path not found or unreadable
	ErrCodeBadInput    = "E003" // Malformed scenario or fixture
	ErrCodeCacheFailed = "E004" // Artifact cache error
	ErrCodeReplay      = "E101" // Replay validation failure
)

// readDocument returns the YAML bytes of a scenario or fixture file.
// CUE files are evaluated to a concrete value and converted; anything
// else is read as-is.
func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) != ".cue" {
		return data, nil
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", path, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	out, err := cueyaml.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", path, err)
	}
	return out, nil
}

// LoadScenarioFile loads a scenario from a YAML or CUE file. Fixture
// paths inside the scenario resolve relative to the file.
func LoadScenarioFile(path string) (*harness.Scenario, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	sc, err := harness.ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// LoadFixtureSnapshot loads a runtime fixture from a YAML or CUE file
// and builds it into a snapshot.
func LoadFixtureSnapshot(path string, chains *rtenv.ChainTable) (*rtenv.Snapshot, *rtenv.Fixture, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, nil, err
	}
	fx, err := rtenv.ParseFixture(data)
	if err != nil {
		return nil, nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	snap, err := rtenv.Build(fx, chains)
	if err != nil {
		return nil, nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return snap, fx, nil
}
