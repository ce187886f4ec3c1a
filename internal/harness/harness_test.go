package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, sc := range scenarios {
		sc := sc
		t.Run(sc.Name, func(t *testing.T) {
			RunWithGolden(t, sc)
		})
	}
}

func TestLoadScenarioValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "fixture: f.yaml\ncompilee: \"A.m()V\"\nexpect:\n  outcome: valid\n",
			want: "name is required",
		},
		{
			name: "missing fixture",
			body: "name: x\ncompilee: \"A.m()V\"\nexpect:\n  outcome: valid\n",
			want: "fixture is required",
		},
		{
			name: "missing compilee",
			body: "name: x\nfixture: f.yaml\nexpect:\n  outcome: valid\n",
			want: "compilee is required",
		},
		{
			name: "missing outcome",
			body: "name: x\nfixture: f.yaml\ncompilee: \"A.m()V\"\n",
			want: "expect.outcome is required",
		},
		{
			name: "unknown field",
			body: "name: x\nfixture: f.yaml\ncompilee: \"A.m()V\"\nbogus: 1\nexpect:\n  outcome: valid\n",
			want: "bogus",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o644))

			_, err := LoadScenario(path)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRunRejectsUnknownOp(t *testing.T) {
	sc := &Scenario{
		Name:     "bad_op",
		Fixture:  "../fixtures/world.yaml",
		Compilee: "pkg/Main.main()V",
		Compile:  []Step{{Op: "add_unobtainium"}},
		Expect:   Expect{Outcome: OutcomeValid},
		dir:      filepath.Join("testdata", "scenarios"),
	}

	_, err := Run(sc)
	require.Error(t, err)
	require.Contains(t, err.Error(), "add_unobtainium")
}

func TestCheckRejectsWrongOutcome(t *testing.T) {
	sc := &Scenario{
		Name:     "wrong_outcome",
		Fixture:  "../fixtures/world.yaml",
		Compilee: "pkg/Main.main()V",
		Compile: []Step{
			{Op: "add_system_class_by_name", Class: "java/lang/Object"},
		},
		Expect: Expect{Outcome: OutcomeMismatch},
		dir:    filepath.Join("testdata", "scenarios"),
	}

	_, err := Check(sc)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected mismatch")
}
