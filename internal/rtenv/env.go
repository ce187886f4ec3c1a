// Package rtenv defines the runtime metadata surface the validation
// engine consults, and an in-memory snapshot implementation of it.
//
// The engine never owns class or method objects; it sees them as opaque
// handles into an externally-owned metadata store. Env is that store's
// query surface: class hierarchy, constant-pool resolution, method
// resolution, and class-chain identity. Queries return the zero handle
// when a symbol cannot be resolved; the engine turns that into a
// validation failure, not an error from the provider.
//
// Env implementations are read-mostly, externally-consistent snapshots
// for the duration of one session; the engine holds no locks.
package rtenv

import "github.com/ibmruntimes/aotverify/internal/facts"

// Env is the runtime metadata provider consumed by the engine.
type Env interface {
	// ClassName returns the internal name of a class (e.g. "java/lang/String",
	// "[Ljava/lang/String;"), or "" for the zero handle.
	ClassName(c facts.ClassRef) string

	// MethodName returns a method's name and signature.
	MethodName(m facts.MethodRef) (name, sig string)

	// DefiningClassOfMethod returns the class that declares m.
	DefiningClassOfMethod(m facts.MethodRef) facts.ClassRef

	// LoaderOf returns the defining loader of c.
	LoaderOf(c facts.ClassRef) facts.LoaderRef

	// ClassByName resolves a class by name as seen from a loader.
	ClassByName(name string, loader facts.LoaderRef) facts.ClassRef

	// SystemClassByName resolves a class by name from the system loader.
	SystemClassByName(name string) facts.ClassRef

	// ConstantPoolOfClass returns c's constant pool.
	ConstantPoolOfClass(c facts.ClassRef) facts.ConstPoolRef

	// OwnerOfConstantPool returns the class a constant pool belongs to.
	OwnerOfConstantPool(cp facts.ConstPoolRef) facts.ClassRef

	// ClassFromCP resolves the class entry at cpIndex.
	ClassFromCP(cp facts.ConstPoolRef, cpIndex uint32) facts.ClassRef

	// DefiningClassFromCP resolves the class defining the field at
	// cpIndex, under static or instance resolution.
	DefiningClassFromCP(cp facts.ConstPoolRef, cpIndex uint32, isStatic bool) facts.ClassRef

	// StaticClassFromCP resolves the class holding the static at cpIndex.
	StaticClassFromCP(cp facts.ConstPoolRef, cpIndex uint32) facts.ClassRef

	// ClassFromITableIndexCP resolves the interface named at cpIndex for
	// itable dispatch.
	ClassFromITableIndexCP(cp facts.ConstPoolRef, cpIndex int32) facts.ClassRef

	// DeclaringClassFromFieldOrStatic resolves the class declaring the
	// field or static referenced at cpIndex.
	DeclaringClassFromFieldOrStatic(cp facts.ConstPoolRef, cpIndex int32) facts.ClassRef

	// StaticMethodFromCP, SpecialMethodFromCP and VirtualMethodFromCP
	// resolve the method entry at cpIndex under the named dispatch.
	StaticMethodFromCP(cp facts.ConstPoolRef, cpIndex int32) facts.MethodRef
	SpecialMethodFromCP(cp facts.ConstPoolRef, cpIndex int32) facts.MethodRef
	VirtualMethodFromCP(cp facts.ConstPoolRef, cpIndex int32) facts.MethodRef

	// InterfaceMethodFromCP resolves the interface method at cpIndex,
	// looked up on the given interface class.
	InterfaceMethodFromCP(cp facts.ConstPoolRef, lookup facts.ClassRef, cpIndex int32) facts.MethodRef

	// ImproperInterfaceMethodFromCP resolves the improper (private or
	// Object-declared) interface method at cpIndex.
	ImproperInterfaceMethodFromCP(cp facts.ConstPoolRef, cpIndex int32) facts.MethodRef

	// SuperClass returns the superclass, or zero for roots.
	SuperClass(c facts.ClassRef) facts.ClassRef

	// ComponentClass returns the component of an array class, zero for
	// non-arrays. ArrayClass is the inverse; IsArrayClass the predicate.
	ComponentClass(array facts.ClassRef) facts.ClassRef
	ArrayClass(component facts.ClassRef) facts.ClassRef
	IsArrayClass(c facts.ClassRef) bool

	// IsInstanceOf answers the instance-of relation under fixedness
	// assumptions. Maybe means the runtime cannot commit either way
	// (e.g. the object type is not fixed and no subtype proof exists).
	IsInstanceOf(one, two facts.ClassRef, objectTypeIsFixed, castTypeIsFixed bool) facts.YesNoMaybe

	// ClassClassPointer returns the class-of-classes reached from the
	// root object class, zero if objectClass is not the root.
	ClassClassPointer(objectClass facts.ClassRef) facts.ClassRef

	// ConcreteSubClass returns the single concrete subclass of super
	// per the class-hierarchy table, zero if there is none or many.
	ConcreteSubClass(super facts.ClassRef) facts.ClassRef

	// IsInitialized reports class initialization status.
	IsInitialized(c facts.ClassRef) bool

	// IsInterface reports whether c is an interface.
	IsInterface(c facts.ClassRef) bool

	// MethodAtIndex returns the index-th declared method of beholder.
	MethodAtIndex(beholder facts.ClassRef, index uint32) facts.MethodRef

	// MethodByNameAndSig finds a declared or inherited method on
	// methodClass by exact name and signature.
	MethodByNameAndSig(methodClass facts.ClassRef, name, sig string) facts.MethodRef

	// VirtualMethodAtOffset resolves the method at a vtable offset of
	// beholder.
	VirtualMethodAtOffset(beholder facts.ClassRef, offset int32, ignoreRtResolve bool) facts.MethodRef

	// SingleImplementer resolves the lone implementation reachable for
	// thisClass at cpIndexOrVftSlot from callerMethod, zero unless the
	// hierarchy has exactly one candidate.
	SingleImplementer(thisClass facts.ClassRef, cpIndexOrVftSlot int32, callerMethod facts.MethodRef, useGetResolvedInterfaceMethod facts.YesNoMaybe) facts.MethodRef

	// SingleInterfaceImplementer resolves the lone implementer of the
	// interface method at callerMethod's cpIndex.
	SingleInterfaceImplementer(thisClass facts.ClassRef, cpIndex int32, callerMethod facts.MethodRef) facts.MethodRef

	// SingleAbstractImplementer resolves the lone concrete override of
	// the abstract method at thisClass's vftSlot.
	SingleAbstractImplementer(thisClass facts.ClassRef, vftSlot int32, callerMethod facts.MethodRef) facts.MethodRef

	// StackWalkerMaySkipFrames reports the stack walker's skip-frames
	// policy for method declared by methodClass.
	StackWalkerMaySkipFrames(method facts.MethodRef, methodClass facts.ClassRef) bool

	// ChainOf builds (or finds) the persistent chain identifying c.
	// Zero means a chain could not be produced, which is a resource
	// condition rather than a logic error.
	ChainOf(c facts.ClassRef) facts.ChainRef

	// ChainMatches re-derives whether c still matches a chain built in
	// an earlier run.
	ChainMatches(c facts.ClassRef, chain facts.ChainRef) bool

	// ChainLoader returns the loader a chain identifies, zero if the
	// chain is unknown to this runtime.
	ChainLoader(chain facts.ChainRef) facts.LoaderRef
}
