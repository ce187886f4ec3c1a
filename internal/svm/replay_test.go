package svm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibmruntimes/aotverify/internal/facts"
	"github.com/ibmruntimes/aotverify/internal/rtenv"
	"github.com/ibmruntimes/aotverify/internal/svm"
)

// populateSession drives a compile session through every record family
// the way a compilation would: classes first, methods against them,
// value facts last.
func populateSession(t *testing.T, m *svm.Manager, snap *rtenv.Snapshot) {
	t.Helper()

	mainClass := mustClass(t, snap, "pkg/Main")
	object := mustClass(t, snap, "java/lang/Object")
	classClass := mustClass(t, snap, "java/lang/Class")
	util := mustClass(t, snap, "pkg/Util")
	runnable := mustClass(t, snap, "pkg/Runnable")
	base := mustClass(t, snap, "pkg/Base")
	task := mustClass(t, snap, "pkg/Task")
	extra := mustClass(t, snap, "pkg/Extra")
	shape := mustClass(t, snap, "pkg/Shape")
	widget := mustClass(t, snap, "pkg/Widget")
	store := mustClass(t, snap, "pkg/Store")
	registry := mustClass(t, snap, "pkg/Registry")
	flags := mustClass(t, snap, "pkg/Flags")
	arr := mustClass(t, snap, "[Lpkg/Util;")

	main := mustMethod(t, snap, "pkg/Main.main()V")
	taskRun := mustMethod(t, snap, "pkg/Task.run()V")
	utilCreate := mustMethod(t, snap, "pkg/Util.create()Lpkg/Util;")
	utilSize := mustMethod(t, snap, "pkg/Util.size()I")
	runnableRun := mustMethod(t, snap, "pkg/Runnable.run()V")
	toString := mustMethod(t, snap, "java/lang/Object.toString()Ljava/lang/String;")
	baseLog := mustMethod(t, snap, "pkg/Base.log()V")

	pool := snap.ConstantPoolOfClass(mainClass)

	// Each class is derived through exactly one record; a second,
	// different derivation of a validated class would be rejected.
	require.NoError(t, m.AddClassByNameRecord(util, mainClass))
	require.NoError(t, m.AddSystemClassByNameRecord(object))
	require.NoError(t, m.AddClassClassRecord(classClass, object))
	require.NoError(t, m.AddClassFromITableIndexCPRecord(runnable, pool, 3))
	require.NoError(t, m.AddConcreteSubClassRecord(task, runnable))
	require.NoError(t, m.AddProfiledClassRecord(extra))
	require.NoError(t, m.AddArrayClassFromComponentClassRecord(arr, util))
	require.NoError(t, m.AddClassFromCPRecord(widget, pool, 7))
	require.NoError(t, m.AddSuperClassFromClassRecord(shape, widget))
	require.NoError(t, m.AddDefiningClassFromCPRecord(store, pool, 4, false))
	require.NoError(t, m.AddStaticClassFromCPRecord(registry, pool, 5))
	require.NoError(t, m.AddDeclaringClassFromFieldOrStaticRecord(flags, pool, 6))

	require.NoError(t, m.AddMethodFromClassRecord(taskRun, task, 0))
	require.NoError(t, m.AddStaticMethodFromCPRecord(utilCreate, pool, 2))
	require.NoError(t, m.AddVirtualMethodFromOffsetRecord(utilSize, util, 8, false))
	require.NoError(t, m.AddVirtualMethodFromOffsetRecord(baseLog, task, 12, false))
	require.NoError(t, m.AddInterfaceMethodFromCPRecord(runnableRun, pool, runnable, 3))
	require.NoError(t, m.AddMethodFromClassAndSigRecord(toString, object, mainClass))
	require.NoError(t, m.AddClassFromMethodRecord(base, baseLog))
	require.NoError(t, m.AddMethodFromSingleInterfaceImplementerRecord(taskRun, runnable, 3, main))
	require.NoError(t, m.AddMethodFromSingleImplementerRecord(taskRun, runnable, 3, main, facts.Yes))

	require.NoError(t, m.AddClassInstanceOfClassRecord(task, runnable, true, false, true))
	require.NoError(t, m.AddClassChainRecord(util))
	require.NoError(t, m.AddStackWalkerMaySkipFramesRecord(main, mainClass, false))
	require.NoError(t, m.AddClassInfoIsInitializedRecord(util, true))
}

func TestCompileLoadRoundTrip(t *testing.T) {
	chains := rtenv.NewChainTable()
	fx := parseSessionFixture(t)

	compileSnap := buildSnapshot(t, fx, chains)
	compile := compileSession(t, compileSnap)
	populateSession(t, compile, compileSnap)

	payloads, err := compile.EncodeRecords()
	require.NoError(t, err)
	require.NotEmpty(t, payloads)

	wires := make([]facts.Wire, 0, len(payloads))
	for _, b := range payloads {
		w, err := facts.DecodeWire(b)
		require.NoError(t, err)
		wires = append(wires, w)
	}

	// A second snapshot stands in for the loading runtime: fresh
	// handles, same world, shared persistent chains.
	loadSnap := buildSnapshot(t, fx, chains)
	loadMain := mustMethod(t, loadSnap, "pkg/Main.main()V")
	load, err := svm.NewLoadSession(loadSnap, loadMain, svm.Config{})
	require.NoError(t, err)

	require.NoError(t, load.ValidateAll(wires))

	// Every ID the compile session minted is bound to the load-side
	// handle with the same identity.
	for _, name := range []string{
		"pkg/Main", "pkg/Util", "pkg/Runnable", "pkg/Base", "pkg/Task",
		"pkg/Extra", "pkg/Shape", "pkg/Widget", "pkg/Store", "pkg/Registry",
		"pkg/Flags", "java/lang/Object", "java/lang/Class", "[Lpkg/Util;",
	} {
		compileRef := mustClass(t, compileSnap, name)
		id, ok := compile.ClassID(compileRef)
		require.True(t, ok, "class %s has no compile ID", name)

		loadRef, ok := load.ClassOfID(id)
		require.True(t, ok, "class %s is unbound after replay", name)
		assert.Equal(t, name, loadSnap.ClassName(loadRef))
	}

	for _, qualified := range []string{
		"pkg/Main.main()V", "pkg/Task.run()V", "pkg/Util.create()Lpkg/Util;",
		"pkg/Util.size()I", "pkg/Base.log()V", "pkg/Runnable.run()V",
		"java/lang/Object.toString()Ljava/lang/String;",
	} {
		compileRef := mustMethod(t, compileSnap, qualified)
		id, ok := compile.MethodID(compileRef)
		require.True(t, ok, "method %s has no compile ID", qualified)

		loadRef, ok := load.MethodOfID(id)
		require.True(t, ok, "method %s is unbound after replay", qualified)
		assert.Equal(t, compileRef, loadRef)
	}
}

func TestReplayIsIdempotent(t *testing.T) {
	chains := rtenv.NewChainTable()
	fx := parseSessionFixture(t)

	compileSnap := buildSnapshot(t, fx, chains)
	compile := compileSession(t, compileSnap)
	populateSession(t, compile, compileSnap)

	wires, err := compile.WireRecords()
	require.NoError(t, err)

	loadSnap := buildSnapshot(t, fx, chains)
	load, err := svm.NewLoadSession(loadSnap, mustMethod(t, loadSnap, "pkg/Main.main()V"), svm.Config{})
	require.NoError(t, err)

	require.NoError(t, load.ValidateAll(wires))
	// Replaying the same stream only confirms existing bindings.
	require.NoError(t, load.ValidateAll(wires))
}

func TestReplayRejectsMissingSymbol(t *testing.T) {
	chains := rtenv.NewChainTable()
	fx := parseSessionFixture(t)

	compileSnap := buildSnapshot(t, fx, chains)
	compile := compileSession(t, compileSnap)

	mainClass := mustClass(t, compileSnap, "pkg/Main")
	util := mustClass(t, compileSnap, "pkg/Util")

	require.NoError(t, compile.AddClassByNameRecord(util, mainClass))
	require.NoError(t, compile.AddClassInfoIsInitializedRecord(util, true))
	wires, err := compile.WireRecords()
	require.NoError(t, err)

	// The recorded name no longer resolves in the loading runtime.
	loadFx := parseSessionFixture(t)
	for i := range loadFx.Classes {
		if loadFx.Classes[i].Name == "pkg/Util" {
			loadFx.Classes[i].Name = "pkg/Hidden"
		}
	}
	// Build fails on dangling references unless they move too.
	for i := range loadFx.Classes {
		fc := &loadFx.Classes[i]
		if fc.Component == "pkg/Util" {
			fc.Component = "pkg/Hidden"
		}
		if fc.Name == "[Lpkg/Util;" {
			fc.Name = "[Lpkg/Hidden;"
		}
		for idx, e := range fc.Pool {
			if e.Class == "pkg/Util" {
				e.Class = "pkg/Hidden"
			}
			renameMethods := func(s string) string {
				if len(s) >= 8 && s[:8] == "pkg/Util" {
					return "pkg/Hidden" + s[8:]
				}
				return s
			}
			e.StaticMethod = renameMethods(e.StaticMethod)
			e.DefiningInst = renameClass(e.DefiningInst)
			e.DefiningStatic = renameClass(e.DefiningStatic)
			e.StaticHolder = renameClass(e.StaticHolder)
			e.FieldDeclaring = renameClass(e.FieldDeclaring)
			fc.Pool[idx] = e
		}
		for off, v := range fc.VTable {
			if len(v) >= 8 && v[:8] == "pkg/Util" {
				fc.VTable[off] = "pkg/Hidden" + v[8:]
			}
		}
	}

	loadSnap, err := rtenv.Build(loadFx, chains)
	require.NoError(t, err)
	load, err := svm.NewLoadSession(loadSnap, mustMethod(t, loadSnap, "pkg/Main.main()V"), svm.Config{})
	require.NoError(t, err)

	err = load.ValidateAll(wires)
	assert.True(t, svm.IsMissingSymbol(err), "got %v", err)
}

func renameClass(s string) string {
	if s == "pkg/Util" {
		return "pkg/Hidden"
	}
	return s
}

func TestReplayDetectsDerivationMismatch(t *testing.T) {
	chains := rtenv.NewChainTable()
	fx := parseSessionFixture(t)

	compileSnap := buildSnapshot(t, fx, chains)
	compile := compileSession(t, compileSnap)

	mainClass := mustClass(t, compileSnap, "pkg/Main")
	util := mustClass(t, compileSnap, "pkg/Util")

	// Two derivations of the same class ID: by name, then through the
	// constant pool. The compile side rejects a second derivation of a
	// validated class, so the conflicting record is written by hand.
	require.NoError(t, compile.AddClassByNameRecord(util, mainClass))
	wires, err := compile.WireRecords()
	require.NoError(t, err)
	wires = append(wires, facts.WireClassFromCP{
		ClassID:    mustID(t, compile, util),
		BeholderID: facts.FirstID,
		CPIndex:    1,
	})

	// The loading runtime's pool entry 1 now resolves to pkg/Task.
	loadFx := parseSessionFixture(t)
	for i := range loadFx.Classes {
		if loadFx.Classes[i].Name == "pkg/Main" {
			loadFx.Classes[i].Pool[1] = rtenv.FixturePoolEntry{Class: "pkg/Task"}
		}
	}

	loadSnap, err := rtenv.Build(loadFx, chains)
	require.NoError(t, err)
	load, err := svm.NewLoadSession(loadSnap, mustMethod(t, loadSnap, "pkg/Main.main()V"), svm.Config{})
	require.NoError(t, err)

	err = load.ValidateAll(wires)
	assert.True(t, svm.IsMismatch(err), "got %v", err)
}

func TestReplayDetectsValueMismatch(t *testing.T) {
	chains := rtenv.NewChainTable()
	fx := parseSessionFixture(t)

	compileSnap := buildSnapshot(t, fx, chains)
	compile := compileSession(t, compileSnap)

	mainClass := mustClass(t, compileSnap, "pkg/Main")
	util := mustClass(t, compileSnap, "pkg/Util")
	require.NoError(t, compile.AddClassByNameRecord(util, mainClass))
	require.NoError(t, compile.AddClassInfoIsInitializedRecord(util, true))

	wires, err := compile.WireRecords()
	require.NoError(t, err)

	// pkg/Util lost its initialized status in the loading runtime.
	loadFx := parseSessionFixture(t)
	for i := range loadFx.Classes {
		if loadFx.Classes[i].Name == "pkg/Util" {
			loadFx.Classes[i].Initialized = false
		}
	}

	loadSnap, err := rtenv.Build(loadFx, chains)
	require.NoError(t, err)
	load, err := svm.NewLoadSession(loadSnap, mustMethod(t, loadSnap, "pkg/Main.main()V"), svm.Config{})
	require.NoError(t, err)

	err = load.ValidateAll(wires)
	assert.True(t, svm.IsMismatch(err), "got %v", err)
}

func TestReplayRejectsUnboundWitness(t *testing.T) {
	chains := rtenv.NewChainTable()
	snap := buildSnapshot(t, parseSessionFixture(t), chains)

	// Fatal assertions must not fire here: an unbound witness means the
	// artifact is stale, not that the process misbehaved.
	load, err := svm.NewLoadSession(snap, mustMethod(t, snap, "pkg/Main.main()V"), svm.Config{AssertionsFatal: true})
	require.NoError(t, err)

	// Witness ID 40 was never bound by an earlier record.
	var werr error
	assert.NotPanics(t, func() {
		werr = load.ValidateWire(facts.WireClassByName{ClassID: 41, BeholderID: 40, ClassName: "pkg/Util"})
	})
	assert.True(t, svm.IsMissingSymbol(werr), "got %v", werr)

	// The load fails without binding the record's own ID.
	_, bound := load.ClassOfID(41)
	assert.False(t, bound)
}

func mustID(t *testing.T, m *svm.Manager, c facts.ClassRef) facts.ID {
	t.Helper()
	id, ok := m.ClassID(c)
	require.True(t, ok)
	return id
}
