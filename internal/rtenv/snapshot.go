package rtenv

import (
	"slices"

	"github.com/ibmruntimes/aotverify/internal/facts"
)

// Snapshot is an in-memory Env: an indexed model of one runtime's class
// and method metadata, frozen for the duration of a session. It stands
// in for the live VM in tests, the harness, and the CLI.
//
// Handles are 1-based indexes into the snapshot's tables; the zero
// handle is "not resolvable" everywhere.
type Snapshot struct {
	loaders      []string
	systemLoader facts.LoaderRef

	classes []*classInfo
	methods []*methodInfo
	pools   []*poolInfo

	byName map[classKey]facts.ClassRef

	chains *ChainTable

	classClass  facts.ClassRef
	objectClass facts.ClassRef
}

type classKey struct {
	name   string
	loader facts.LoaderRef
}

type classInfo struct {
	name        string
	loader      facts.LoaderRef
	super       facts.ClassRef
	interfaces  []facts.ClassRef
	component   facts.ClassRef // non-zero marks an array class
	array       facts.ClassRef
	methods     []facts.MethodRef
	pool        facts.ConstPoolRef
	vtable      map[int32]facts.MethodRef
	implementer []facts.ClassRef // concrete implementers/subclasses (CH table view)
	initialized bool
	isInterface bool
}

type methodInfo struct {
	name       string
	sig        string
	holder     facts.ClassRef
	skipFrames bool
}

type poolInfo struct {
	owner   facts.ClassRef
	entries map[uint32]*poolEntry
}

// poolEntry models one constant-pool index with the per-dispatch
// resolutions the engine may ask for. Unset fields resolve to zero.
type poolEntry struct {
	class           facts.ClassRef
	definingInst    facts.ClassRef
	definingStatic  facts.ClassRef
	staticHolder    facts.ClassRef
	itableClass     facts.ClassRef
	fieldDeclaring  facts.ClassRef
	staticMethod    facts.MethodRef
	specialMethod   facts.MethodRef
	virtualMethod   facts.MethodRef
	improperMethod  facts.MethodRef
	interfaceLookup facts.ClassRef
	interfaceMethod facts.MethodRef
}

func (s *Snapshot) classAt(c facts.ClassRef) *classInfo {
	if c == 0 || int(c) > len(s.classes) {
		return nil
	}
	return s.classes[c-1]
}

func (s *Snapshot) methodAt(m facts.MethodRef) *methodInfo {
	if m == 0 || int(m) > len(s.methods) {
		return nil
	}
	return s.methods[m-1]
}

func (s *Snapshot) poolAt(cp facts.ConstPoolRef) *poolInfo {
	if cp == 0 || int(cp) > len(s.pools) {
		return nil
	}
	return s.pools[cp-1]
}

func (s *Snapshot) entryAt(cp facts.ConstPoolRef, index uint32) *poolEntry {
	p := s.poolAt(cp)
	if p == nil {
		return nil
	}
	return p.entries[index]
}

func (s *Snapshot) ClassName(c facts.ClassRef) string {
	if ci := s.classAt(c); ci != nil {
		return ci.name
	}
	return ""
}

func (s *Snapshot) MethodName(m facts.MethodRef) (string, string) {
	if mi := s.methodAt(m); mi != nil {
		return mi.name, mi.sig
	}
	return "", ""
}

func (s *Snapshot) DefiningClassOfMethod(m facts.MethodRef) facts.ClassRef {
	if mi := s.methodAt(m); mi != nil {
		return mi.holder
	}
	return 0
}

func (s *Snapshot) LoaderOf(c facts.ClassRef) facts.LoaderRef {
	if ci := s.classAt(c); ci != nil {
		return ci.loader
	}
	return 0
}

// ClassByName looks up by (name, loader) with delegation to the system
// loader, the usual parent-delegation shape.
func (s *Snapshot) ClassByName(name string, loader facts.LoaderRef) facts.ClassRef {
	if loader == 0 {
		return 0
	}
	if ref, ok := s.byName[classKey{name: name, loader: loader}]; ok {
		return ref
	}
	if loader != s.systemLoader {
		if ref, ok := s.byName[classKey{name: name, loader: s.systemLoader}]; ok {
			return ref
		}
	}
	return 0
}

func (s *Snapshot) SystemClassByName(name string) facts.ClassRef {
	return s.ClassByName(name, s.systemLoader)
}

func (s *Snapshot) ConstantPoolOfClass(c facts.ClassRef) facts.ConstPoolRef {
	if ci := s.classAt(c); ci != nil {
		return ci.pool
	}
	return 0
}

func (s *Snapshot) OwnerOfConstantPool(cp facts.ConstPoolRef) facts.ClassRef {
	if p := s.poolAt(cp); p != nil {
		return p.owner
	}
	return 0
}

func (s *Snapshot) ClassFromCP(cp facts.ConstPoolRef, cpIndex uint32) facts.ClassRef {
	if e := s.entryAt(cp, cpIndex); e != nil {
		return e.class
	}
	return 0
}

func (s *Snapshot) DefiningClassFromCP(cp facts.ConstPoolRef, cpIndex uint32, isStatic bool) facts.ClassRef {
	e := s.entryAt(cp, cpIndex)
	if e == nil {
		return 0
	}
	if isStatic {
		return e.definingStatic
	}
	return e.definingInst
}

func (s *Snapshot) StaticClassFromCP(cp facts.ConstPoolRef, cpIndex uint32) facts.ClassRef {
	if e := s.entryAt(cp, cpIndex); e != nil {
		return e.staticHolder
	}
	return 0
}

func (s *Snapshot) ClassFromITableIndexCP(cp facts.ConstPoolRef, cpIndex int32) facts.ClassRef {
	if cpIndex < 0 {
		return 0
	}
	if e := s.entryAt(cp, uint32(cpIndex)); e != nil {
		return e.itableClass
	}
	return 0
}

func (s *Snapshot) DeclaringClassFromFieldOrStatic(cp facts.ConstPoolRef, cpIndex int32) facts.ClassRef {
	if cpIndex < 0 {
		return 0
	}
	if e := s.entryAt(cp, uint32(cpIndex)); e != nil {
		return e.fieldDeclaring
	}
	return 0
}

func (s *Snapshot) StaticMethodFromCP(cp facts.ConstPoolRef, cpIndex int32) facts.MethodRef {
	if cpIndex < 0 {
		return 0
	}
	if e := s.entryAt(cp, uint32(cpIndex)); e != nil {
		return e.staticMethod
	}
	return 0
}

func (s *Snapshot) SpecialMethodFromCP(cp facts.ConstPoolRef, cpIndex int32) facts.MethodRef {
	if cpIndex < 0 {
		return 0
	}
	if e := s.entryAt(cp, uint32(cpIndex)); e != nil {
		return e.specialMethod
	}
	return 0
}

func (s *Snapshot) VirtualMethodFromCP(cp facts.ConstPoolRef, cpIndex int32) facts.MethodRef {
	if cpIndex < 0 {
		return 0
	}
	if e := s.entryAt(cp, uint32(cpIndex)); e != nil {
		return e.virtualMethod
	}
	return 0
}

func (s *Snapshot) InterfaceMethodFromCP(cp facts.ConstPoolRef, lookup facts.ClassRef, cpIndex int32) facts.MethodRef {
	if cpIndex < 0 {
		return 0
	}
	e := s.entryAt(cp, uint32(cpIndex))
	if e == nil || e.interfaceLookup != lookup {
		return 0
	}
	return e.interfaceMethod
}

func (s *Snapshot) ImproperInterfaceMethodFromCP(cp facts.ConstPoolRef, cpIndex int32) facts.MethodRef {
	if cpIndex < 0 {
		return 0
	}
	if e := s.entryAt(cp, uint32(cpIndex)); e != nil {
		return e.improperMethod
	}
	return 0
}

func (s *Snapshot) SuperClass(c facts.ClassRef) facts.ClassRef {
	if ci := s.classAt(c); ci != nil {
		return ci.super
	}
	return 0
}

func (s *Snapshot) ComponentClass(array facts.ClassRef) facts.ClassRef {
	if ci := s.classAt(array); ci != nil {
		return ci.component
	}
	return 0
}

func (s *Snapshot) ArrayClass(component facts.ClassRef) facts.ClassRef {
	if ci := s.classAt(component); ci != nil {
		return ci.array
	}
	return 0
}

func (s *Snapshot) IsArrayClass(c facts.ClassRef) bool {
	ci := s.classAt(c)
	return ci != nil && ci.component != 0
}

// IsInstanceOf walks one's superclasses and transitive interfaces
// looking for two. Without a subtype proof the answer is No only when
// the object type is fixed; otherwise a subtype may still show up at
// run time and the runtime cannot commit.
func (s *Snapshot) IsInstanceOf(one, two facts.ClassRef, objectTypeIsFixed, castTypeIsFixed bool) facts.YesNoMaybe {
	if one == 0 || two == 0 {
		return facts.Maybe
	}
	if s.isSubtypeOf(one, two) {
		return facts.Yes
	}
	if objectTypeIsFixed {
		return facts.No
	}
	return facts.Maybe
}

func (s *Snapshot) isSubtypeOf(sub, super facts.ClassRef) bool {
	for c := sub; c != 0; c = s.SuperClass(c) {
		if c == super {
			return true
		}
		if s.implementsTransitively(c, super) {
			return true
		}
	}
	return false
}

func (s *Snapshot) implementsTransitively(c, iface facts.ClassRef) bool {
	ci := s.classAt(c)
	if ci == nil {
		return false
	}
	for _, i := range ci.interfaces {
		if i == iface || s.implementsTransitively(i, iface) {
			return true
		}
	}
	return false
}

func (s *Snapshot) ClassClassPointer(objectClass facts.ClassRef) facts.ClassRef {
	if objectClass != s.objectClass {
		return 0
	}
	return s.classClass
}

func (s *Snapshot) ConcreteSubClass(super facts.ClassRef) facts.ClassRef {
	ci := s.classAt(super)
	if ci == nil || len(ci.implementer) != 1 {
		return 0
	}
	return ci.implementer[0]
}

func (s *Snapshot) IsInitialized(c facts.ClassRef) bool {
	ci := s.classAt(c)
	return ci != nil && ci.initialized
}

func (s *Snapshot) IsInterface(c facts.ClassRef) bool {
	ci := s.classAt(c)
	return ci != nil && ci.isInterface
}

func (s *Snapshot) MethodAtIndex(beholder facts.ClassRef, index uint32) facts.MethodRef {
	ci := s.classAt(beholder)
	if ci == nil || int(index) >= len(ci.methods) {
		return 0
	}
	return ci.methods[index]
}

func (s *Snapshot) MethodByNameAndSig(methodClass facts.ClassRef, name, sig string) facts.MethodRef {
	for c := methodClass; c != 0; c = s.SuperClass(c) {
		ci := s.classAt(c)
		if ci == nil {
			return 0
		}
		for _, m := range ci.methods {
			mi := s.methodAt(m)
			if mi != nil && mi.name == name && mi.sig == sig {
				return m
			}
		}
	}
	return 0
}

func (s *Snapshot) VirtualMethodAtOffset(beholder facts.ClassRef, offset int32, ignoreRtResolve bool) facts.MethodRef {
	ci := s.classAt(beholder)
	if ci == nil {
		return 0
	}
	return ci.vtable[offset]
}

func (s *Snapshot) soleImplementer(c facts.ClassRef) facts.ClassRef {
	ci := s.classAt(c)
	if ci == nil || len(ci.implementer) != 1 {
		return 0
	}
	return ci.implementer[0]
}

func (s *Snapshot) SingleImplementer(thisClass facts.ClassRef, cpIndexOrVftSlot int32, callerMethod facts.MethodRef, useGetResolvedInterfaceMethod facts.YesNoMaybe) facts.MethodRef {
	impl := s.soleImplementer(thisClass)
	if impl == 0 {
		return 0
	}

	useInterface := useGetResolvedInterfaceMethod == facts.Yes ||
		(useGetResolvedInterfaceMethod == facts.Maybe && s.IsInterface(thisClass))

	var decl facts.MethodRef
	if useInterface {
		callerPool := s.ConstantPoolOfClass(s.DefiningClassOfMethod(callerMethod))
		decl = s.InterfaceMethodFromCP(callerPool, thisClass, cpIndexOrVftSlot)
	} else {
		decl = s.VirtualMethodAtOffset(thisClass, cpIndexOrVftSlot, false)
	}
	if decl == 0 {
		return 0
	}
	name, sig := s.MethodName(decl)
	return s.MethodByNameAndSig(impl, name, sig)
}

func (s *Snapshot) SingleInterfaceImplementer(thisClass facts.ClassRef, cpIndex int32, callerMethod facts.MethodRef) facts.MethodRef {
	impl := s.soleImplementer(thisClass)
	if impl == 0 {
		return 0
	}
	callerPool := s.ConstantPoolOfClass(s.DefiningClassOfMethod(callerMethod))
	decl := s.InterfaceMethodFromCP(callerPool, thisClass, cpIndex)
	if decl == 0 {
		return 0
	}
	name, sig := s.MethodName(decl)
	return s.MethodByNameAndSig(impl, name, sig)
}

func (s *Snapshot) SingleAbstractImplementer(thisClass facts.ClassRef, vftSlot int32, callerMethod facts.MethodRef) facts.MethodRef {
	impl := s.soleImplementer(thisClass)
	if impl == 0 {
		return 0
	}
	decl := s.VirtualMethodAtOffset(thisClass, vftSlot, false)
	if decl == 0 {
		return 0
	}
	name, sig := s.MethodName(decl)
	return s.MethodByNameAndSig(impl, name, sig)
}

func (s *Snapshot) StackWalkerMaySkipFrames(method facts.MethodRef, methodClass facts.ClassRef) bool {
	mi := s.methodAt(method)
	return mi != nil && mi.holder == methodClass && mi.skipFrames
}

func (s *Snapshot) loaderName(l facts.LoaderRef) string {
	if l == 0 || int(l) > len(s.loaders) {
		return ""
	}
	return s.loaders[l-1]
}

func (s *Snapshot) loaderByName(name string) facts.LoaderRef {
	if i := slices.Index(s.loaders, name); i >= 0 {
		return facts.LoaderRef(i + 1)
	}
	return 0
}

func (s *Snapshot) chainNames(c facts.ClassRef) []string {
	var names []string
	for cur := c; cur != 0; cur = s.SuperClass(cur) {
		names = append(names, s.ClassName(cur))
	}
	return names
}

func (s *Snapshot) ChainOf(c facts.ClassRef) facts.ChainRef {
	ci := s.classAt(c)
	if ci == nil || s.chains == nil {
		return 0
	}
	return s.chains.Intern(ci.name, s.loaderName(ci.loader), s.chainNames(c))
}

func (s *Snapshot) ChainMatches(c facts.ClassRef, chain facts.ChainRef) bool {
	ci := s.classAt(c)
	if ci == nil || s.chains == nil {
		return false
	}
	entry, ok := s.chains.lookup(chain)
	if !ok || entry.className != ci.name {
		return false
	}
	return slices.Equal(entry.names, s.chainNames(c))
}

func (s *Snapshot) ChainLoader(chain facts.ChainRef) facts.LoaderRef {
	if s.chains == nil {
		return 0
	}
	entry, ok := s.chains.lookup(chain)
	if !ok {
		return 0
	}
	return s.loaderByName(entry.loaderName)
}
