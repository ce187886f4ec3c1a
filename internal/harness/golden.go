package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/ibmruntimes/aotverify/internal/facts"
)

// RunWithGolden executes a scenario, checks its expectations, and
// compares the canonical trace against testdata/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) {
	t.Helper()

	result, err := Check(sc)
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}

	snapshot, err := canonicalSnapshot(result)
	if err != nil {
		t.Fatalf("scenario %s: snapshot: %v", sc.Name, err)
	}

	g := goldie.New(t)
	g.Assert(t, sc.Name, snapshot)
}

// canonicalSnapshot renders a result as canonical JSON so golden
// comparisons are byte-stable across runs.
func canonicalSnapshot(r *Result) ([]byte, error) {
	records := make([]any, 0, len(r.Records))
	for _, w := range r.Records {
		payload, err := facts.EncodeWire(w)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		records = append(records, m)
	}

	return facts.MarshalCanonical(map[string]any{
		"scenario": r.Scenario,
		"outcome":  r.Outcome,
		"records":  records,
	})
}
