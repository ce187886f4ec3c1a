package facts

import (
	"fmt"
	"strings"
)

// Record is the closed sum of validation-record kinds. Exactly the
// structs in this file implement it.
//
// Fields returns the kind-specific fields in declared member order. The
// same sequence serves two masters: the within-kind comparison of the
// total order, and diagnostic dumps on validation failure. Handle fields
// compare by identity, booleans as 0/1.
type Record interface {
	Kind() Kind

	// ClassRooted reports whether this record asserts a fact whose
	// subject is a class. Class-rooted records route through array
	// dimension unrolling when the subject is an array class.
	ClassRooted() bool

	Fields() []Field

	sealed()
}

// Field is one kind-specific record field, reduced to an ordered integer.
type Field struct {
	Name  string
	Value int64
}

func ref(name string, v uint32) Field { return Field{Name: name, Value: int64(v)} }

func num(name string, v int64) Field { return Field{Name: name, Value: v} }

func flag(name string, v bool) Field {
	if v {
		return Field{Name: name, Value: 1}
	}
	return Field{Name: name, Value: 0}
}

// Less is the record total order: kind first, then fields in declared
// member order. For any two records exactly one of Less(a,b), Less(b,a),
// Equal(a,b) holds.
func Less(a, b Record) bool {
	if a.Kind() != b.Kind() {
		return a.Kind() < b.Kind()
	}
	af, bf := a.Fields(), b.Fields()
	for i := range af {
		if af[i].Value != bf[i].Value {
			return af[i].Value < bf[i].Value
		}
	}
	return false
}

// Equal reports whether neither record is strictly less than the other.
func Equal(a, b Record) bool {
	return !Less(a, b) && !Less(b, a)
}

// Format renders a record for traces and failure diagnostics,
// e.g. "class_by_name(class=3 beholder=1)".
func Format(r Record) string {
	var sb strings.Builder
	sb.WriteString(r.Kind().String())
	sb.WriteByte('(')
	for i, f := range r.Fields() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%d", f.Name, f.Value)
	}
	sb.WriteByte(')')
	return sb.String()
}

// classFact marks the class-rooted record family.
type classFact struct{}

func (classFact) ClassRooted() bool { return true }
func (classFact) sealed()           {}

// plainFact marks records that are not class-rooted.
type plainFact struct{}

func (plainFact) ClassRooted() bool { return false }
func (plainFact) sealed()           {}

// ClassByName: Class is reachable by its name from Beholder's loader.
type ClassByName struct {
	classFact
	Class    ClassRef
	Beholder ClassRef
}

func (ClassByName) Kind() Kind { return KindClassByName }
func (r ClassByName) Fields() []Field {
	return []Field{ref("class", uint32(r.Class)), ref("beholder", uint32(r.Beholder))}
}

// ProfiledClass: Class is identified by the persistent chain Chain,
// independent of any beholder (profile-guided assumptions).
type ProfiledClass struct {
	classFact
	Class ClassRef
	Chain ChainRef
}

func (ProfiledClass) Kind() Kind { return KindProfiledClass }
func (r ProfiledClass) Fields() []Field {
	return []Field{ref("class", uint32(r.Class)), ref("chain", uint32(r.Chain))}
}

// ClassFromCP: Class is the resolution of Beholder's constant-pool entry
// at CPIndex.
type ClassFromCP struct {
	classFact
	Class    ClassRef
	Beholder ClassRef
	CPIndex  uint32
}

func (ClassFromCP) Kind() Kind { return KindClassFromCP }
func (r ClassFromCP) Fields() []Field {
	return []Field{ref("class", uint32(r.Class)), ref("beholder", uint32(r.Beholder)), num("cp_index", int64(r.CPIndex))}
}

// DefiningClassFromCP: Class defines the field at Beholder's CPIndex
// (static or instance resolution per IsStatic).
type DefiningClassFromCP struct {
	classFact
	Class    ClassRef
	Beholder ClassRef
	CPIndex  uint32
	IsStatic bool
}

func (DefiningClassFromCP) Kind() Kind { return KindDefiningClassFromCP }
func (r DefiningClassFromCP) Fields() []Field {
	return []Field{
		ref("class", uint32(r.Class)),
		ref("beholder", uint32(r.Beholder)),
		num("cp_index", int64(r.CPIndex)),
		flag("is_static", r.IsStatic),
	}
}

// StaticClassFromCP: Class holds the static referenced by Beholder's
// constant-pool entry at CPIndex.
type StaticClassFromCP struct {
	classFact
	Class    ClassRef
	Beholder ClassRef
	CPIndex  uint32
}

func (StaticClassFromCP) Kind() Kind { return KindStaticClassFromCP }
func (r StaticClassFromCP) Fields() []Field {
	return []Field{ref("class", uint32(r.Class)), ref("beholder", uint32(r.Beholder)), num("cp_index", int64(r.CPIndex))}
}

// ClassFromMethod: Class is the defining class of Method.
type ClassFromMethod struct {
	classFact
	Class  ClassRef
	Method MethodRef
}

func (ClassFromMethod) Kind() Kind { return KindClassFromMethod }
func (r ClassFromMethod) Fields() []Field {
	return []Field{ref("class", uint32(r.Class)), ref("method", uint32(r.Method))}
}

// ComponentClassFromArrayClass: Component is the component class of
// Array. Emitted once per dimension when an array class is unrolled.
type ComponentClassFromArrayClass struct {
	classFact
	Component ClassRef
	Array     ClassRef
}

func (ComponentClassFromArrayClass) Kind() Kind { return KindComponentClassFromArrayClass }
func (r ComponentClassFromArrayClass) Fields() []Field {
	return []Field{ref("component", uint32(r.Component)), ref("array", uint32(r.Array))}
}

// ArrayClassFromComponentClass: Array is the array class of Component.
type ArrayClassFromComponentClass struct {
	classFact
	Array     ClassRef
	Component ClassRef
}

func (ArrayClassFromComponentClass) Kind() Kind { return KindArrayClassFromComponentClass }
func (r ArrayClassFromComponentClass) Fields() []Field {
	return []Field{ref("array", uint32(r.Array)), ref("component", uint32(r.Component))}
}

// SuperClassFromClass: Super is the superclass of Child.
type SuperClassFromClass struct {
	classFact
	Super ClassRef
	Child ClassRef
}

func (SuperClassFromClass) Kind() Kind { return KindSuperClassFromClass }
func (r SuperClassFromClass) Fields() []Field {
	return []Field{ref("super", uint32(r.Super)), ref("child", uint32(r.Child))}
}

// ClassInstanceOfClass: the instance-of relation between ClassOne and
// ClassTwo produced IsInstanceOf under the given fixedness assumptions.
// Replay must reproduce the same boolean, not merely succeed.
type ClassInstanceOfClass struct {
	plainFact
	ClassOne          ClassRef
	ClassTwo          ClassRef
	ObjectTypeIsFixed bool
	CastTypeIsFixed   bool
	IsInstanceOf      bool
}

func (ClassInstanceOfClass) Kind() Kind { return KindClassInstanceOfClass }
func (r ClassInstanceOfClass) Fields() []Field {
	return []Field{
		ref("class_one", uint32(r.ClassOne)),
		ref("class_two", uint32(r.ClassTwo)),
		flag("object_type_is_fixed", r.ObjectTypeIsFixed),
		flag("cast_type_is_fixed", r.CastTypeIsFixed),
		flag("is_instance_of", r.IsInstanceOf),
	}
}

// SystemClassByName: SystemClass is reachable by name from the system
// loader.
type SystemClassByName struct {
	classFact
	SystemClass ClassRef
}

func (SystemClassByName) Kind() Kind { return KindSystemClassByName }
func (r SystemClassByName) Fields() []Field {
	return []Field{ref("system_class", uint32(r.SystemClass))}
}

// ClassFromITableIndexCP: Class is the interface named by Beholder's
// constant-pool entry at CPIndex (itable dispatch).
type ClassFromITableIndexCP struct {
	classFact
	Class    ClassRef
	Beholder ClassRef
	CPIndex  int32
}

func (ClassFromITableIndexCP) Kind() Kind { return KindClassFromITableIndexCP }
func (r ClassFromITableIndexCP) Fields() []Field {
	return []Field{ref("class", uint32(r.Class)), ref("beholder", uint32(r.Beholder)), num("cp_index", int64(r.CPIndex))}
}

// DeclaringClassFromFieldOrStatic: Class declares the field or static
// referenced by Beholder's constant-pool entry at CPIndex.
type DeclaringClassFromFieldOrStatic struct {
	classFact
	Class    ClassRef
	Beholder ClassRef
	CPIndex  int32
}

func (DeclaringClassFromFieldOrStatic) Kind() Kind { return KindDeclaringClassFromFieldOrStatic }
func (r DeclaringClassFromFieldOrStatic) Fields() []Field {
	return []Field{ref("class", uint32(r.Class)), ref("beholder", uint32(r.Beholder)), num("cp_index", int64(r.CPIndex))}
}

// ClassClass: ClassClass is the class-of-classes obtained from
// ObjectClass (java/lang/Class from java/lang/Object).
type ClassClass struct {
	classFact
	ClassClass  ClassRef
	ObjectClass ClassRef
}

func (ClassClass) Kind() Kind { return KindClassClass }
func (r ClassClass) Fields() []Field {
	return []Field{ref("class_class", uint32(r.ClassClass)), ref("object_class", uint32(r.ObjectClass))}
}

// ConcreteSubClassFromClass: Child is the single concrete subclass of
// Super known to the class-hierarchy table.
type ConcreteSubClassFromClass struct {
	classFact
	Child ClassRef
	Super ClassRef
}

func (ConcreteSubClassFromClass) Kind() Kind { return KindConcreteSubClassFromClass }
func (r ConcreteSubClassFromClass) Fields() []Field {
	return []Field{ref("child", uint32(r.Child)), ref("super", uint32(r.Super))}
}

// ClassChain: Class matches the persistent chain Chain.
type ClassChain struct {
	plainFact
	Class ClassRef
	Chain ChainRef
}

func (ClassChain) Kind() Kind { return KindClassChain }
func (r ClassChain) Fields() []Field {
	return []Field{ref("class", uint32(r.Class)), ref("chain", uint32(r.Chain))}
}

// MethodFromClass: Method is the Index-th declared method of Beholder.
type MethodFromClass struct {
	plainFact
	Method   MethodRef
	Beholder ClassRef
	Index    uint32
}

func (MethodFromClass) Kind() Kind { return KindMethodFromClass }
func (r MethodFromClass) Fields() []Field {
	return []Field{ref("method", uint32(r.Method)), ref("beholder", uint32(r.Beholder)), num("index", int64(r.Index))}
}

// StaticMethodFromCP: Method is the static-dispatch resolution of
// Beholder's constant-pool entry at CPIndex.
type StaticMethodFromCP struct {
	plainFact
	Method   MethodRef
	Beholder ClassRef
	CPIndex  int32
}

func (StaticMethodFromCP) Kind() Kind { return KindStaticMethodFromCP }
func (r StaticMethodFromCP) Fields() []Field {
	return []Field{ref("method", uint32(r.Method)), ref("beholder", uint32(r.Beholder)), num("cp_index", int64(r.CPIndex))}
}

// SpecialMethodFromCP: Method is the special-dispatch resolution of
// Beholder's constant-pool entry at CPIndex.
type SpecialMethodFromCP struct {
	plainFact
	Method   MethodRef
	Beholder ClassRef
	CPIndex  int32
}

func (SpecialMethodFromCP) Kind() Kind { return KindSpecialMethodFromCP }
func (r SpecialMethodFromCP) Fields() []Field {
	return []Field{ref("method", uint32(r.Method)), ref("beholder", uint32(r.Beholder)), num("cp_index", int64(r.CPIndex))}
}

// VirtualMethodFromCP: Method is the virtual-dispatch resolution of
// Beholder's constant-pool entry at CPIndex.
type VirtualMethodFromCP struct {
	plainFact
	Method   MethodRef
	Beholder ClassRef
	CPIndex  int32
}

func (VirtualMethodFromCP) Kind() Kind { return KindVirtualMethodFromCP }
func (r VirtualMethodFromCP) Fields() []Field {
	return []Field{ref("method", uint32(r.Method)), ref("beholder", uint32(r.Beholder)), num("cp_index", int64(r.CPIndex))}
}

// VirtualMethodFromOffset: Method sits at VirtualCallOffset in
// Beholder's vtable.
type VirtualMethodFromOffset struct {
	plainFact
	Method            MethodRef
	Beholder          ClassRef
	VirtualCallOffset int32
	IgnoreRtResolve   bool
}

func (VirtualMethodFromOffset) Kind() Kind { return KindVirtualMethodFromOffset }
func (r VirtualMethodFromOffset) Fields() []Field {
	return []Field{
		ref("method", uint32(r.Method)),
		ref("beholder", uint32(r.Beholder)),
		num("virtual_call_offset", int64(r.VirtualCallOffset)),
		flag("ignore_rt_resolve", r.IgnoreRtResolve),
	}
}

// InterfaceMethodFromCP: Method is the interface-dispatch resolution of
// Beholder's constant-pool entry at CPIndex, looked up on Lookup.
type InterfaceMethodFromCP struct {
	plainFact
	Method   MethodRef
	Beholder ClassRef
	Lookup   ClassRef
	CPIndex  int32
}

func (InterfaceMethodFromCP) Kind() Kind { return KindInterfaceMethodFromCP }
func (r InterfaceMethodFromCP) Fields() []Field {
	return []Field{
		ref("method", uint32(r.Method)),
		ref("beholder", uint32(r.Beholder)),
		ref("lookup", uint32(r.Lookup)),
		num("cp_index", int64(r.CPIndex)),
	}
}

// ImproperInterfaceMethodFromCP: Method is the improper (private or
// Object) interface resolution of Beholder's entry at CPIndex.
type ImproperInterfaceMethodFromCP struct {
	plainFact
	Method   MethodRef
	Beholder ClassRef
	CPIndex  int32
}

func (ImproperInterfaceMethodFromCP) Kind() Kind { return KindImproperInterfaceMethodFromCP }
func (r ImproperInterfaceMethodFromCP) Fields() []Field {
	return []Field{ref("method", uint32(r.Method)), ref("beholder", uint32(r.Beholder)), num("cp_index", int64(r.CPIndex))}
}

// MethodFromClassAndSig: Method is found on MethodClass by the name and
// signature recorded at compile time, resolved from Beholder's context.
type MethodFromClassAndSig struct {
	plainFact
	Method      MethodRef
	MethodClass ClassRef
	Beholder    ClassRef
}

func (MethodFromClassAndSig) Kind() Kind { return KindMethodFromClassAndSig }
func (r MethodFromClassAndSig) Fields() []Field {
	return []Field{
		ref("method", uint32(r.Method)),
		ref("method_class", uint32(r.MethodClass)),
		ref("beholder", uint32(r.Beholder)),
	}
}

// MethodFromSingleImplementer: Method is the lone implementation
// reachable for ThisClass at CPIndexOrVftSlot from CallerMethod.
type MethodFromSingleImplementer struct {
	plainFact
	Method                        MethodRef
	ThisClass                     ClassRef
	CPIndexOrVftSlot              int32
	CallerMethod                  MethodRef
	UseGetResolvedInterfaceMethod YesNoMaybe
}

func (MethodFromSingleImplementer) Kind() Kind { return KindMethodFromSingleImplementer }
func (r MethodFromSingleImplementer) Fields() []Field {
	return []Field{
		ref("method", uint32(r.Method)),
		ref("this_class", uint32(r.ThisClass)),
		num("cp_index_or_vft_slot", int64(r.CPIndexOrVftSlot)),
		ref("caller_method", uint32(r.CallerMethod)),
		num("use_get_resolved_interface_method", int64(r.UseGetResolvedInterfaceMethod)),
	}
}

// MethodFromSingleInterfaceImplementer: Method is the lone implementer
// of the interface method at ThisClass's CPIndex.
type MethodFromSingleInterfaceImplementer struct {
	plainFact
	Method       MethodRef
	ThisClass    ClassRef
	CPIndex      int32
	CallerMethod MethodRef
}

func (MethodFromSingleInterfaceImplementer) Kind() Kind {
	return KindMethodFromSingleInterfaceImplementer
}
func (r MethodFromSingleInterfaceImplementer) Fields() []Field {
	return []Field{
		ref("method", uint32(r.Method)),
		ref("this_class", uint32(r.ThisClass)),
		num("cp_index", int64(r.CPIndex)),
		ref("caller_method", uint32(r.CallerMethod)),
	}
}

// MethodFromSingleAbstractImplementer: Method is the lone concrete
// override of the abstract method at ThisClass's VftSlot.
type MethodFromSingleAbstractImplementer struct {
	plainFact
	Method       MethodRef
	ThisClass    ClassRef
	VftSlot      int32
	CallerMethod MethodRef
}

func (MethodFromSingleAbstractImplementer) Kind() Kind {
	return KindMethodFromSingleAbstractImplementer
}
func (r MethodFromSingleAbstractImplementer) Fields() []Field {
	return []Field{
		ref("method", uint32(r.Method)),
		ref("this_class", uint32(r.ThisClass)),
		num("vft_slot", int64(r.VftSlot)),
		ref("caller_method", uint32(r.CallerMethod)),
	}
}

// StackWalkerMaySkipFrames: the stack walker's skip-frames policy for
// Method (declared by MethodClass) was SkipFrames.
type StackWalkerMaySkipFrames struct {
	plainFact
	Method      MethodRef
	MethodClass ClassRef
	SkipFrames  bool
}

func (StackWalkerMaySkipFrames) Kind() Kind { return KindStackWalkerMaySkipFrames }
func (r StackWalkerMaySkipFrames) Fields() []Field {
	return []Field{
		ref("method", uint32(r.Method)),
		ref("method_class", uint32(r.MethodClass)),
		flag("skip_frames", r.SkipFrames),
	}
}

// ClassInfoIsInitialized: Class's initialization status was
// IsInitialized. Replay must reproduce the same status.
type ClassInfoIsInitialized struct {
	plainFact
	Class         ClassRef
	IsInitialized bool
}

func (ClassInfoIsInitialized) Kind() Kind { return KindClassInfoIsInitialized }
func (r ClassInfoIsInitialized) Fields() []Field {
	return []Field{ref("class", uint32(r.Class)), flag("is_initialized", r.IsInitialized)}
}
