package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a runtime fixture, a
// compile script that builds a record stream, and the expected outcome
// of replaying that stream against a (possibly different) load-time
// fixture.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is the path to the compile-time runtime fixture,
	// relative to the scenario file.
	Fixture string `yaml:"fixture"`

	// LoadFixture optionally names a different load-time fixture, for
	// scenarios where the runtime changed between compile and load.
	// Empty means the load runtime matches the compile runtime.
	LoadFixture string `yaml:"load_fixture,omitempty"`

	// Compilee is the method being compiled, as "Class.name(sig)".
	Compilee string `yaml:"compilee"`

	// Compile is the script of record-building steps.
	Compile []Step `yaml:"compile"`

	// Expect specifies the expected replay outcome.
	Expect Expect `yaml:"expect"`

	// dir is the directory the scenario was loaded from; fixture paths
	// resolve against it.
	dir string
}

// Step is one scripted session operation. Op selects the operation;
// the remaining fields carry its arguments, named after the fixture
// symbols they reference.
type Step struct {
	Op string `yaml:"op"`

	Class       string `yaml:"class,omitempty"`
	Beholder    string `yaml:"beholder,omitempty"`
	Array       string `yaml:"array,omitempty"`
	Component   string `yaml:"component,omitempty"`
	Super       string `yaml:"super,omitempty"`
	Child       string `yaml:"child,omitempty"`
	ClassOne    string `yaml:"class_one,omitempty"`
	ClassTwo    string `yaml:"class_two,omitempty"`
	ObjectClass string `yaml:"object_class,omitempty"`
	ThisClass   string `yaml:"this_class,omitempty"`
	Lookup      string `yaml:"lookup,omitempty"`
	MethodClass string `yaml:"method_class,omitempty"`

	Method string `yaml:"method,omitempty"`
	Caller string `yaml:"caller,omitempty"`

	// CP names the class whose constant pool a FromCP step resolves
	// through.
	CP      string `yaml:"cp,omitempty"`
	CPIndex int32  `yaml:"cp_index,omitempty"`
	Index   uint32 `yaml:"index,omitempty"`
	Offset  int32  `yaml:"offset,omitempty"`
	VftSlot int32  `yaml:"vft_slot,omitempty"`

	IsStatic          bool `yaml:"is_static,omitempty"`
	ObjectTypeIsFixed bool `yaml:"object_type_is_fixed,omitempty"`
	CastTypeIsFixed   bool `yaml:"cast_type_is_fixed,omitempty"`
	IsInstanceOf      bool `yaml:"is_instance_of,omitempty"`
	IgnoreRtResolve   bool `yaml:"ignore_rt_resolve,omitempty"`
	SkipFrames        bool `yaml:"skip_frames,omitempty"`
	Initialized       bool `yaml:"initialized,omitempty"`

	// UseInterface is yes, no or maybe, for single-implementer steps.
	UseInterface string `yaml:"use_interface,omitempty"`
}

// Expect specifies the expected replay outcome.
type Expect struct {
	// Outcome is one of valid, mismatch, missing_symbol,
	// logic_failure, limit_exceeded.
	Outcome string `yaml:"outcome"`

	// Records optionally pins the number of records the compile
	// script must produce.
	Records *int `yaml:"records,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	sc, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes and validates scenario YAML. Fixture paths in
// the scenario resolve against dir.
func ParseScenario(data []byte, dir string) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, err
	}

	if sc.Name == "" {
		return nil, errors.New("name is required")
	}
	if sc.Fixture == "" {
		return nil, errors.New("fixture is required")
	}
	if sc.Compilee == "" {
		return nil, errors.New("compilee is required")
	}
	if sc.Expect.Outcome == "" {
		return nil, errors.New("expect.outcome is required")
	}

	sc.dir = dir
	return &sc, nil
}

// LoadScenarios reads every *.yaml scenario in a directory, sorted by
// file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *Scenario) fixturePath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(s.dir, rel)
}
