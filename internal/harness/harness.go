// Package harness runs declarative conformance scenarios: build a
// record stream against a compile-time fixture, replay it against a
// load-time fixture, and check the outcome. Scenario traces are
// compared against golden files.
package harness

import (
	"errors"
	"fmt"
	"os"

	"github.com/ibmruntimes/aotverify/internal/facts"
	"github.com/ibmruntimes/aotverify/internal/rtenv"
	"github.com/ibmruntimes/aotverify/internal/svm"
)

// Outcome classifies the end state of a scenario run.
const (
	OutcomeValid         = "valid"
	OutcomeMismatch      = "mismatch"
	OutcomeMissingSymbol = "missing_symbol"
	OutcomeLogicFailure  = "logic_failure"
	OutcomeLimitExceeded = "limit_exceeded"
)

// Result captures one scenario run.
type Result struct {
	Scenario string
	Outcome  string
	// Records is the wire stream the compile script produced.
	Records []facts.Wire
	// Err is the replay or compile error behind a non-valid outcome.
	Err error
}

// Run executes a scenario end to end: compile script, serialization
// round trip, replay. The returned error reports harness-level
// problems (bad fixture, unknown op); validation failures land in
// Result.Outcome instead.
func Run(sc *Scenario) (*Result, error) {
	chains := rtenv.NewChainTable()

	result, done, err := compilePhase(sc, chains)
	if err != nil || done {
		return result, err
	}

	loadPath := sc.Fixture
	if sc.LoadFixture != "" {
		loadPath = sc.LoadFixture
	}
	loadSnap, err := buildFixture(sc.fixturePath(loadPath), chains)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	loadCompilee, err := loadSnap.MustMethod(sc.Compilee)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: load compilee: %w", sc.Name, err)
	}
	load, err := svm.NewLoadSession(loadSnap, loadCompilee, svm.Config{})
	if err != nil {
		return result.finish(err), nil
	}

	return result.finish(load.ValidateAll(result.Records)), nil
}

// Compile runs only the compile script and the serialization round
// trip, without replaying. The record command uses this to produce
// artifacts from scenario files.
func Compile(sc *Scenario) (*Result, error) {
	result, done, err := compilePhase(sc, rtenv.NewChainTable())
	if err != nil || done {
		return result, err
	}
	return result.finish(nil), nil
}

// compilePhase builds the record stream for a scenario. done reports
// that the result is already final and replay must not proceed.
func compilePhase(sc *Scenario, chains *rtenv.ChainTable) (result *Result, done bool, err error) {
	compileSnap, err := buildFixture(sc.fixturePath(sc.Fixture), chains)
	if err != nil {
		return nil, false, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	compilee, err := compileSnap.MustMethod(sc.Compilee)
	if err != nil {
		return nil, false, fmt.Errorf("scenario %s: compilee: %w", sc.Name, err)
	}

	result = &Result{Scenario: sc.Name}

	compile, err := svm.NewCompileSession(compileSnap, compilee, svm.Config{})
	if err != nil {
		return result.finish(err), true, nil
	}

	for i, step := range sc.Compile {
		if err := applyStep(compile, compileSnap, step); err != nil {
			var se *svm.Error
			if errors.As(err, &se) {
				return result.finish(err), true, nil
			}
			return nil, false, fmt.Errorf("scenario %s: step %d (%s): %w", sc.Name, i, step.Op, err)
		}
	}

	// Round-trip through the persisted form so scenarios exercise the
	// codec, not just the in-memory stream.
	payloads, err := compile.EncodeRecords()
	if err != nil {
		return result.finish(err), true, nil
	}
	for _, b := range payloads {
		w, err := facts.DecodeWire(b)
		if err != nil {
			return result.finish(err), true, nil
		}
		result.Records = append(result.Records, w)
	}

	return result, false, nil
}

// Check runs a scenario and verifies its expectations.
func Check(sc *Scenario) (*Result, error) {
	result, err := Run(sc)
	if err != nil {
		return nil, err
	}
	if result.Outcome != sc.Expect.Outcome {
		return result, fmt.Errorf("scenario %s: outcome %s, expected %s (err: %v)",
			sc.Name, result.Outcome, sc.Expect.Outcome, result.Err)
	}
	if sc.Expect.Records != nil && len(result.Records) != *sc.Expect.Records {
		return result, fmt.Errorf("scenario %s: %d records, expected %d",
			sc.Name, len(result.Records), *sc.Expect.Records)
	}
	return result, nil
}

func (r *Result) finish(err error) *Result {
	r.Err = err
	r.Outcome = ClassifyOutcome(err)
	return r
}

// ClassifyOutcome maps a session or replay error to an outcome label.
// A nil error is OutcomeValid.
func ClassifyOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeValid
	case svm.IsMismatch(err):
		return OutcomeMismatch
	case svm.IsMissingSymbol(err):
		return OutcomeMissingSymbol
	case svm.IsLimitExceeded(err):
		return OutcomeLimitExceeded
	default:
		return OutcomeLogicFailure
	}
}

func buildFixture(path string, chains *rtenv.ChainTable) (*rtenv.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fx, err := rtenv.ParseFixture(data)
	if err != nil {
		return nil, err
	}
	return rtenv.Build(fx, chains)
}
