package rtenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibmruntimes/aotverify/internal/facts"
)

const testFixture = `
system_loader: boot
loaders: [boot, app]
object_class: java/lang/Object
class_class: java/lang/Class
classes:
  - name: java/lang/Object
    loader: boot
    initialized: true
    methods:
      - "toString()Ljava/lang/String;"
  - name: java/lang/Class
    loader: boot
    super: java/lang/Object
    initialized: true
  - name: pkg/Runnable
    loader: app
    interface: true
    methods:
      - "run()V"
    implementers: [pkg/Task]
  - name: pkg/Task
    loader: app
    super: java/lang/Object
    interfaces: [pkg/Runnable]
    initialized: true
    methods:
      - "run()V"
      - "helper(I)I"
    skip_frames:
      - "helper(I)I"
    vtable:
      16: "pkg/Task.run()V"
    pool:
      3:
        class: pkg/Runnable
        itable_class: pkg/Runnable
        interface_lookup: pkg/Runnable
        interface_method: "pkg/Runnable.run()V"
      5:
        defining_instance: java/lang/Object
        defining_static: pkg/Task
        static_holder: pkg/Task
        field_declaring: java/lang/Object
        virtual_method: "java/lang/Object.toString()Ljava/lang/String;"
  - name: "[Lpkg/Task;"
    loader: app
    super: java/lang/Object
    component: pkg/Task
`

func buildTestSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	fx, err := ParseFixture([]byte(testFixture))
	require.NoError(t, err)
	s, err := Build(fx, NewChainTable())
	require.NoError(t, err)
	return s
}

func TestBuildResolvesHierarchy(t *testing.T) {
	s := buildTestSnapshot(t)

	task, err := s.MustClass("pkg/Task")
	require.NoError(t, err)
	object, err := s.MustClass("java/lang/Object")
	require.NoError(t, err)
	runnable, err := s.MustClass("pkg/Runnable")
	require.NoError(t, err)

	assert.Equal(t, object, s.SuperClass(task))
	assert.Equal(t, facts.ClassRef(0), s.SuperClass(object))
	assert.True(t, s.IsInterface(runnable))
	assert.False(t, s.IsInterface(task))
	assert.True(t, s.IsInitialized(task))
	assert.Equal(t, "pkg/Task", s.ClassName(task))
}

func TestClassByNameDelegatesToSystemLoader(t *testing.T) {
	s := buildTestSnapshot(t)

	object, err := s.MustClass("java/lang/Object")
	require.NoError(t, err)
	task, err := s.MustClass("pkg/Task")
	require.NoError(t, err)
	app := s.LoaderOf(task)

	// Visible through the app loader by delegation.
	assert.Equal(t, object, s.ClassByName("java/lang/Object", app))
	assert.Equal(t, object, s.SystemClassByName("java/lang/Object"))

	// App classes are not visible from the system loader.
	assert.Equal(t, facts.ClassRef(0), s.SystemClassByName("pkg/Task"))
	assert.Equal(t, facts.ClassRef(0), s.ClassByName("no/Such", app))
}

func TestArrayAndComponentAreInverse(t *testing.T) {
	s := buildTestSnapshot(t)

	task, err := s.MustClass("pkg/Task")
	require.NoError(t, err)
	arr, err := s.MustClass("[Lpkg/Task;")
	require.NoError(t, err)

	assert.True(t, s.IsArrayClass(arr))
	assert.False(t, s.IsArrayClass(task))
	assert.Equal(t, task, s.ComponentClass(arr))
	assert.Equal(t, arr, s.ArrayClass(task))
}

func TestIsInstanceOf(t *testing.T) {
	s := buildTestSnapshot(t)

	task, _ := s.MustClass("pkg/Task")
	object, _ := s.MustClass("java/lang/Object")
	runnable, _ := s.MustClass("pkg/Runnable")
	classClass, _ := s.MustClass("java/lang/Class")

	assert.Equal(t, facts.Yes, s.IsInstanceOf(task, object, false, false))
	assert.Equal(t, facts.Yes, s.IsInstanceOf(task, runnable, false, false))
	assert.Equal(t, facts.Yes, s.IsInstanceOf(task, task, false, false))

	// Not a subtype: No only when the object type is fixed.
	assert.Equal(t, facts.No, s.IsInstanceOf(classClass, runnable, true, false))
	assert.Equal(t, facts.Maybe, s.IsInstanceOf(classClass, runnable, false, false))
	assert.Equal(t, facts.Maybe, s.IsInstanceOf(0, runnable, true, true))
}

func TestConstantPoolResolution(t *testing.T) {
	s := buildTestSnapshot(t)

	task, _ := s.MustClass("pkg/Task")
	object, _ := s.MustClass("java/lang/Object")
	runnable, _ := s.MustClass("pkg/Runnable")
	toString, err := s.MustMethod("java/lang/Object.toString()Ljava/lang/String;")
	require.NoError(t, err)
	run, err := s.MustMethod("pkg/Runnable.run()V")
	require.NoError(t, err)

	cp := s.ConstantPoolOfClass(task)
	require.NotZero(t, cp)
	assert.Equal(t, task, s.OwnerOfConstantPool(cp))

	assert.Equal(t, runnable, s.ClassFromCP(cp, 3))
	assert.Equal(t, runnable, s.ClassFromITableIndexCP(cp, 3))
	assert.Equal(t, object, s.DefiningClassFromCP(cp, 5, false))
	assert.Equal(t, task, s.DefiningClassFromCP(cp, 5, true))
	assert.Equal(t, task, s.StaticClassFromCP(cp, 5))
	assert.Equal(t, object, s.DeclaringClassFromFieldOrStatic(cp, 5))
	assert.Equal(t, toString, s.VirtualMethodFromCP(cp, 5))

	// Interface dispatch checks the lookup class.
	assert.Equal(t, run, s.InterfaceMethodFromCP(cp, runnable, 3))
	assert.Equal(t, facts.MethodRef(0), s.InterfaceMethodFromCP(cp, object, 3))

	// Unpopulated dispatches and indexes resolve to zero.
	assert.Equal(t, facts.MethodRef(0), s.StaticMethodFromCP(cp, 5))
	assert.Equal(t, facts.ClassRef(0), s.ClassFromCP(cp, 99))
	assert.Equal(t, facts.MethodRef(0), s.VirtualMethodFromCP(cp, -1))
}

func TestMethodResolution(t *testing.T) {
	s := buildTestSnapshot(t)

	task, _ := s.MustClass("pkg/Task")
	run, _ := s.MustMethod("pkg/Task.run()V")
	helper, _ := s.MustMethod("pkg/Task.helper(I)I")
	toString, _ := s.MustMethod("java/lang/Object.toString()Ljava/lang/String;")

	assert.Equal(t, run, s.MethodAtIndex(task, 0))
	assert.Equal(t, helper, s.MethodAtIndex(task, 1))
	assert.Equal(t, facts.MethodRef(0), s.MethodAtIndex(task, 2))

	name, sig := s.MethodName(helper)
	assert.Equal(t, "helper", name)
	assert.Equal(t, "(I)I", sig)
	assert.Equal(t, task, s.DefiningClassOfMethod(helper))

	// Inherited lookup walks the superclass chain.
	assert.Equal(t, toString, s.MethodByNameAndSig(task, "toString", "()Ljava/lang/String;"))
	assert.Equal(t, run, s.VirtualMethodAtOffset(task, 16, false))
	assert.Equal(t, facts.MethodRef(0), s.VirtualMethodAtOffset(task, 24, false))
}

func TestSingleImplementerResolution(t *testing.T) {
	s := buildTestSnapshot(t)

	runnable, _ := s.MustClass("pkg/Runnable")
	task, _ := s.MustClass("pkg/Task")
	taskRun, _ := s.MustMethod("pkg/Task.run()V")
	caller, _ := s.MustMethod("pkg/Task.helper(I)I")

	assert.Equal(t, task, s.ConcreteSubClass(runnable))

	// Interface dispatch through the caller's pool entry 3.
	assert.Equal(t, taskRun, s.SingleInterfaceImplementer(runnable, 3, caller))
	assert.Equal(t, taskRun, s.SingleImplementer(runnable, 3, caller, facts.Yes))
	assert.Equal(t, taskRun, s.SingleImplementer(runnable, 3, caller, facts.Maybe))

	// No interface path without the resolved-interface-method route.
	assert.Equal(t, facts.MethodRef(0), s.SingleImplementer(runnable, 3, caller, facts.No))
}

func TestStackWalkerSkipFrames(t *testing.T) {
	s := buildTestSnapshot(t)

	task, _ := s.MustClass("pkg/Task")
	object, _ := s.MustClass("java/lang/Object")
	helper, _ := s.MustMethod("pkg/Task.helper(I)I")
	run, _ := s.MustMethod("pkg/Task.run()V")

	assert.True(t, s.StackWalkerMaySkipFrames(helper, task))
	assert.False(t, s.StackWalkerMaySkipFrames(run, task))
	assert.False(t, s.StackWalkerMaySkipFrames(helper, object))
}

func TestClassClassPointer(t *testing.T) {
	s := buildTestSnapshot(t)

	object, _ := s.MustClass("java/lang/Object")
	classClass, _ := s.MustClass("java/lang/Class")
	task, _ := s.MustClass("pkg/Task")

	assert.Equal(t, classClass, s.ClassClassPointer(object))
	assert.Equal(t, facts.ClassRef(0), s.ClassClassPointer(task))
}

func TestChainsSurviveRebuild(t *testing.T) {
	chains := NewChainTable()

	fx, err := ParseFixture([]byte(testFixture))
	require.NoError(t, err)
	compile, err := Build(fx, chains)
	require.NoError(t, err)

	task1, _ := compile.MustClass("pkg/Task")
	chain := compile.ChainOf(task1)
	require.NotZero(t, chain)

	// Same chain for the same class.
	assert.Equal(t, chain, compile.ChainOf(task1))
	assert.True(t, compile.ChainMatches(task1, chain))
	assert.Equal(t, compile.LoaderOf(task1), compile.ChainLoader(chain))

	// A second snapshot against the same table re-derives the identity.
	load, err := Build(fx, chains)
	require.NoError(t, err)
	task2, _ := load.MustClass("pkg/Task")
	assert.Equal(t, chain, load.ChainOf(task2))
	assert.True(t, load.ChainMatches(task2, chain))

	object, _ := load.MustClass("java/lang/Object")
	assert.False(t, load.ChainMatches(object, chain))
}

func TestParseFixtureRejectsUnknownFields(t *testing.T) {
	_, err := ParseFixture([]byte("system_loader: boot\nbogus: 1\n"))
	assert.Error(t, err)
}

func TestBuildRejectsBadReferences(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing system loader", "classes: []\n"},
		{"unknown loader", "system_loader: boot\nclasses:\n  - name: A\n    loader: nope\n"},
		{"duplicate class", "system_loader: boot\nclasses:\n  - name: A\n  - name: A\n"},
		{"unknown super", "system_loader: boot\nclasses:\n  - name: A\n    super: B\n"},
		{"malformed method", "system_loader: boot\nclasses:\n  - name: A\n    methods: [\"broken\"]\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx, err := ParseFixture([]byte(tc.yaml))
			require.NoError(t, err)
			_, err = Build(fx, NewChainTable())
			assert.Error(t, err)
		})
	}
}
