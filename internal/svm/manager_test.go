package svm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibmruntimes/aotverify/internal/facts"
	"github.com/ibmruntimes/aotverify/internal/rtenv"
	"github.com/ibmruntimes/aotverify/internal/svm"
)

const sessionFixture = `
system_loader: boot
loaders: [boot, app]
object_class: java/lang/Object
class_class: java/lang/Class
classes:
  - name: java/lang/Object
    loader: boot
    initialized: true
    methods: ["toString()Ljava/lang/String;"]
  - name: java/lang/Class
    loader: boot
    super: java/lang/Object
    initialized: true
  - name: pkg/Main
    loader: app
    super: java/lang/Object
    initialized: true
    methods: ["main()V", "helper()V"]
    pool:
      1: {class: pkg/Util}
      2: {static_method: "pkg/Util.create()Lpkg/Util;"}
      3:
        class: pkg/Runnable
        itable_class: pkg/Runnable
        interface_lookup: pkg/Runnable
        interface_method: "pkg/Runnable.run()V"
      4:
        defining_instance: pkg/Store
        defining_static: pkg/Store
      5: {static_holder: pkg/Registry}
      6: {field_declaring: pkg/Flags}
      7: {class: pkg/Widget}
  - name: pkg/Util
    loader: app
    super: java/lang/Object
    initialized: true
    methods: ["create()Lpkg/Util;", "size()I"]
    vtable:
      8: "pkg/Util.size()I"
  - name: pkg/Runnable
    loader: app
    interface: true
    methods: ["run()V"]
    implementers: [pkg/Task]
  - name: pkg/Base
    loader: app
    super: java/lang/Object
    initialized: true
    methods: ["log()V"]
  - name: pkg/Task
    loader: app
    super: pkg/Base
    interfaces: [pkg/Runnable]
    initialized: true
    methods: ["run()V"]
    vtable:
      12: "pkg/Base.log()V"
  - name: pkg/Extra
    loader: app
    super: java/lang/Object
  - name: pkg/Shape
    loader: app
    super: java/lang/Object
  - name: pkg/Widget
    loader: app
    super: pkg/Shape
  - name: pkg/Store
    loader: app
    super: java/lang/Object
  - name: pkg/Registry
    loader: app
    super: java/lang/Object
  - name: pkg/Flags
    loader: app
    super: java/lang/Object
  - name: "[Lpkg/Util;"
    loader: app
    super: java/lang/Object
    component: pkg/Util
`

func parseSessionFixture(t *testing.T) *rtenv.Fixture {
	t.Helper()
	fx, err := rtenv.ParseFixture([]byte(sessionFixture))
	require.NoError(t, err)
	return fx
}

func buildSnapshot(t *testing.T, fx *rtenv.Fixture, chains *rtenv.ChainTable) *rtenv.Snapshot {
	t.Helper()
	snap, err := rtenv.Build(fx, chains)
	require.NoError(t, err)
	return snap
}

func compileSession(t *testing.T, snap *rtenv.Snapshot) *svm.Manager {
	t.Helper()
	main, err := snap.MustMethod("pkg/Main.main()V")
	require.NoError(t, err)
	m, err := svm.NewCompileSession(snap, main, svm.Config{})
	require.NoError(t, err)
	return m
}

func mustClass(t *testing.T, snap *rtenv.Snapshot, name string) facts.ClassRef {
	t.Helper()
	c, err := snap.MustClass(name)
	require.NoError(t, err)
	return c
}

func mustMethod(t *testing.T, snap *rtenv.Snapshot, qualified string) facts.MethodRef {
	t.Helper()
	m, err := snap.MustMethod(qualified)
	require.NoError(t, err)
	return m
}

func TestGuaranteedIDs(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	m := compileSession(t, snap)

	mainClass := mustClass(t, snap, "pkg/Main")
	main := mustMethod(t, snap, "pkg/Main.main()V")

	id, ok := m.ClassID(mainClass)
	require.True(t, ok)
	assert.Equal(t, facts.FirstID, id)

	id, ok = m.MethodID(main)
	require.True(t, ok)
	assert.Equal(t, facts.FirstID+1, id)

	assert.True(t, m.ClassIsValidated(mainClass))
	assert.True(t, m.MethodIsValidated(main))
	assert.Empty(t, m.Records(), "guaranteed IDs need no records")
}

func TestNewSessionRejectsUnresolvableCompilee(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())

	_, err := svm.NewCompileSession(snap, 0, svm.Config{})
	assert.True(t, svm.IsMissingSymbol(err))

	_, err = svm.NewLoadSession(snap, 0, svm.Config{})
	assert.True(t, svm.IsMissingSymbol(err))
}

func TestAddRecordsInGenerationOrder(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	m := compileSession(t, snap)

	mainClass := mustClass(t, snap, "pkg/Main")
	util := mustClass(t, snap, "pkg/Util")
	runnable := mustClass(t, snap, "pkg/Runnable")

	require.NoError(t, m.AddSystemClassByNameRecord(mustClass(t, snap, "java/lang/Object")))
	require.NoError(t, m.AddClassByNameRecord(util, mainClass))
	require.NoError(t, m.AddClassByNameRecord(runnable, mainClass))

	records := m.Records()
	require.Len(t, records, 3)
	// Generation order, not sorted order: system_class_by_name has a
	// later kind than class_by_name but was generated first.
	assert.Equal(t, facts.KindSystemClassByName, records[0].Kind())
	assert.Equal(t, facts.KindClassByName, records[1].Kind())
	assert.Equal(t, facts.KindClassByName, records[2].Kind())
}

func TestAddDeduplicatesEqualRecords(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	m := compileSession(t, snap)

	mainClass := mustClass(t, snap, "pkg/Main")
	util := mustClass(t, snap, "pkg/Util")
	task := mustClass(t, snap, "pkg/Task")
	runnable := mustClass(t, snap, "pkg/Runnable")

	require.NoError(t, m.AddClassByNameRecord(util, mainClass))
	require.NoError(t, m.AddClassByNameRecord(task, mainClass))
	require.NoError(t, m.AddClassByNameRecord(runnable, mainClass))

	// Re-deriving the same fact is a no-op, not a new record.
	require.NoError(t, m.AddClassByNameRecord(util, mainClass))

	// Value records dedup by field equality.
	require.NoError(t, m.AddClassInstanceOfClassRecord(task, runnable, true, false, true))
	require.NoError(t, m.AddClassInstanceOfClassRecord(task, runnable, true, false, true))
	require.NoError(t, m.AddClassInstanceOfClassRecord(task, runnable, false, false, true))

	records := m.Records()
	assert.Len(t, records, 5)
	assert.True(t, m.HasRecord(facts.ClassByName{Class: util, Beholder: mainClass}))
}

func TestAddRejectsConflictingDerivation(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	m := compileSession(t, snap)

	mainClass := mustClass(t, snap, "pkg/Main")
	util := mustClass(t, snap, "pkg/Util")
	task := mustClass(t, snap, "pkg/Task")

	require.NoError(t, m.AddClassByNameRecord(util, mainClass))
	require.NoError(t, m.AddClassByNameRecord(task, mainClass))

	// A different derivation of an already-validated class contradicts
	// the record that validated it.
	err := m.AddSuperClassFromClassRecord(util, mainClass)
	assert.True(t, svm.IsLogicFailure(err), "got %v", err)

	// Same kind, different witness: still a contradiction.
	err = m.AddClassByNameRecord(util, task)
	assert.True(t, svm.IsLogicFailure(err), "got %v", err)

	// The compilee class carries a guaranteed ID with no record, so
	// facts about it are skipped rather than rejected.
	main := mustMethod(t, snap, "pkg/Main.main()V")
	require.NoError(t, m.AddClassFromMethodRecord(mainClass, main))

	assert.Len(t, m.Records(), 2)
}

func TestAddNilSubjectIsNoOp(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	m := compileSession(t, snap)

	require.NoError(t, m.AddClassByNameRecord(0, mustClass(t, snap, "pkg/Main")))
	require.NoError(t, m.AddMethodFromClassRecord(0, mustClass(t, snap, "pkg/Main"), 0))
	assert.Empty(t, m.Records())
}

func TestAddRequiresValidatedWitness(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	m := compileSession(t, snap)

	util := mustClass(t, snap, "pkg/Util")
	extra := mustClass(t, snap, "pkg/Extra")

	err := m.AddClassByNameRecord(util, extra)
	assert.True(t, svm.IsLogicFailure(err))
	assert.Empty(t, m.Records())
}

func TestAssertionsFatalPanicsOnLogicFailure(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	main := mustMethod(t, snap, "pkg/Main.main()V")
	m, err := svm.NewCompileSession(snap, main, svm.Config{AssertionsFatal: true})
	require.NoError(t, err)

	util := mustClass(t, snap, "pkg/Util")
	extra := mustClass(t, snap, "pkg/Extra")

	assert.Panics(t, func() {
		_ = m.AddClassByNameRecord(util, extra)
	})

	// Environmental failures stay errors even with fatal assertions.
	require.NoError(t, m.AddClassByNameRecord(extra, mustClass(t, snap, "pkg/Main")))
	err = m.AddProfiledClassRecord(0)
	assert.NoError(t, err)
}

func TestHeuristicRegionSuspendsRecording(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	m := compileSession(t, snap)

	mainClass := mustClass(t, snap, "pkg/Main")
	util := mustClass(t, snap, "pkg/Util")
	extra := mustClass(t, snap, "pkg/Extra")

	m.EnterHeuristicRegion()
	m.EnterHeuristicRegion()
	assert.True(t, m.InHeuristicRegion())

	// Everything reads as validated and nothing persists.
	assert.True(t, m.ClassIsValidated(extra))
	require.NoError(t, m.AddClassByNameRecord(util, mainClass))
	assert.Empty(t, m.Records())
	_, ok := m.ClassID(util)
	assert.False(t, ok)

	require.NoError(t, m.ExitHeuristicRegion())
	assert.True(t, m.InHeuristicRegion(), "regions nest")
	require.NoError(t, m.ExitHeuristicRegion())
	assert.False(t, m.InHeuristicRegion())
	assert.False(t, m.ClassIsValidated(extra))

	// Recording resumes after the region closes.
	require.NoError(t, m.AddClassByNameRecord(util, mainClass))
	assert.Len(t, m.Records(), 1)

	err := m.ExitHeuristicRegion()
	assert.True(t, svm.IsLogicFailure(err))
}

func TestArrayClassUnrolling(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	m := compileSession(t, snap)

	mainClass := mustClass(t, snap, "pkg/Main")
	arr := mustClass(t, snap, "[Lpkg/Util;")
	util := mustClass(t, snap, "pkg/Util")

	require.NoError(t, m.AddClassByNameRecord(arr, mainClass))

	records := m.Records()
	require.Len(t, records, 2)
	assert.Equal(t, facts.KindClassByName, records[0].Kind())
	assert.Equal(t, facts.KindComponentClassFromArrayClass, records[1].Kind())

	// Both dimensions carry IDs.
	_, ok := m.ClassID(arr)
	assert.True(t, ok)
	_, ok = m.ClassID(util)
	assert.True(t, ok)
}

func TestArrayClassFromComponentDoesNotUnroll(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	m := compileSession(t, snap)

	mainClass := mustClass(t, snap, "pkg/Main")
	arr := mustClass(t, snap, "[Lpkg/Util;")
	util := mustClass(t, snap, "pkg/Util")

	require.NoError(t, m.AddClassByNameRecord(util, mainClass))
	require.NoError(t, m.AddArrayClassFromComponentClassRecord(arr, util))

	records := m.Records()
	require.Len(t, records, 2)
	assert.Equal(t, facts.KindArrayClassFromComponentClass, records[1].Kind())
}

func TestSeenSymbolsTrackIncidentalObservation(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	m := compileSession(t, snap)

	util := mustClass(t, snap, "pkg/Util")
	arr := mustClass(t, snap, "[Lpkg/Util;")

	assert.False(t, m.ClassIsSeen(arr))
	assert.False(t, m.ClassIsSeen(util))

	// Profiling an array type pins its leaf component. The array itself
	// is only walked through: seen, but neither recorded nor named.
	require.NoError(t, m.AddProfiledClassRecord(arr))

	assert.True(t, m.ClassIsSeen(arr))
	_, ok := m.ClassID(arr)
	assert.False(t, ok, "walked-through array dimension must not get an ID")

	assert.True(t, m.ClassIsSeen(util))
	_, ok = m.ClassID(util)
	assert.True(t, ok)

	// The guaranteed IDs count as seen from session start.
	assert.True(t, m.ClassIsSeen(mustClass(t, snap, "pkg/Main")))
	assert.True(t, m.MethodIsSeen(mustMethod(t, snap, "pkg/Main.main()V")))

	// A seen-but-unvalidated witness is still rejected.
	err := m.AddClassInfoIsInitializedRecord(arr, true)
	assert.True(t, svm.IsLogicFailure(err))
	assert.Contains(t, err.Error(), "seen")
}

func TestWithHeuristicRegionClosesOnAllPaths(t *testing.T) {
	snap := buildSnapshot(t, parseSessionFixture(t), rtenv.NewChainTable())
	m := compileSession(t, snap)

	mainClass := mustClass(t, snap, "pkg/Main")
	util := mustClass(t, snap, "pkg/Util")

	err := m.WithHeuristicRegion(func() error {
		assert.True(t, m.InHeuristicRegion())
		// Nested regions close with their own scope.
		return m.WithHeuristicRegion(func() error {
			return m.AddClassByNameRecord(util, mainClass)
		})
	})
	require.NoError(t, err)
	assert.False(t, m.InHeuristicRegion())
	assert.Empty(t, m.Records(), "nothing persists inside the region")

	// The region closes on the error path too, and the callback's
	// error comes back unchanged.
	sentinel := errors.New("speculation failed")
	err = m.WithHeuristicRegion(func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, m.InHeuristicRegion())

	// Recording works again once the guard has run.
	require.NoError(t, m.AddClassByNameRecord(util, mainClass))
	assert.Len(t, m.Records(), 1)
}
