package svm

import (
	"github.com/ibmruntimes/aotverify/internal/facts"
)

// Compile-phase entry points. Each Add method records the fact the
// compiler relied on and assigns an ID to the record's subject symbol.
// Witness symbols (beholders, callers, lookup classes) must already
// carry IDs from earlier records; a fresh witness is a logic failure
// in the caller.
//
// A nil subject and any add inside a heuristic region are no-ops: the
// compiler speculated without committing to the result.

// addClassRecord records a class-rooted fact about subject. An array
// subject is unrolled: one ComponentClassFromArrayClass record per
// dimension, so the leaf component also receives an ID.
func (m *Manager) addClassRecord(op string, subject facts.ClassRef, r facts.Record) error {
	if subject == 0 || m.heuristicDepth > 0 {
		return nil
	}
	if done, err := m.checkValidatedSubject(op, subject, r); done {
		return err
	}
	if err := m.appendClassRecord(op, subject, r); err != nil {
		return err
	}
	for m.env.IsArrayClass(subject) {
		component := m.env.ComponentClass(subject)
		if component == 0 {
			return m.recordLogicErr(op, r, "array class %d has no component", subject)
		}
		if _, ok := m.classIDs[component]; ok {
			m.seenClasses[component] = struct{}{}
			break
		}
		cr := facts.ComponentClassFromArrayClass{Component: component, Array: subject}
		if err := m.appendClassRecord(op, component, cr); err != nil {
			return err
		}
		subject = component
	}
	return nil
}

// addRootClassRecord is addClassRecord without array unrolling, for
// records that already walk a single dimension themselves.
func (m *Manager) addRootClassRecord(op string, subject facts.ClassRef, r facts.Record) error {
	if subject == 0 || m.heuristicDepth > 0 {
		return nil
	}
	if done, err := m.checkValidatedSubject(op, subject, r); done {
		return err
	}
	return m.appendClassRecord(op, subject, r)
}

// checkValidatedSubject handles a class subject that already carries
// an ID. Re-deriving a fact that is already in the stream is a no-op;
// deriving a different fact about the same identity means two records
// contradict each other, which only a bug upstream can produce. The
// compilee class is exempt: its guaranteed ID has no defining record.
func (m *Manager) checkValidatedSubject(op string, subject facts.ClassRef, r facts.Record) (bool, error) {
	if _, ok := m.classIDs[subject]; !ok {
		return false, nil
	}
	m.seenClasses[subject] = struct{}{}
	if subject != m.compileeClass && !m.HasRecord(r) {
		return true, m.recordLogicErr(op, r, "class %d is validated but has no matching record", subject)
	}
	return true, nil
}

func (m *Manager) appendClassRecord(op string, subject facts.ClassRef, r facts.Record) error {
	m.insertRecord(r)
	id, err := m.mintClassID(op, subject)
	if err != nil {
		return err
	}
	m.log.Debug("record added", "record", facts.Format(r), "subject_id", id)
	return nil
}

// addMethodRecord records a fact whose subject is a method. Unlike
// class records, distinct records about an already-known method are
// kept: each one pins a different derivation the compiler used.
func (m *Manager) addMethodRecord(op string, subject facts.MethodRef, r facts.Record) error {
	if subject == 0 || m.heuristicDepth > 0 {
		return nil
	}
	if !m.insertRecord(r) {
		return nil
	}
	id, err := m.mintMethodID(op, subject)
	if err != nil {
		return err
	}
	m.log.Debug("record added", "record", facts.Format(r), "subject_id", id)
	return nil
}

// addValueRecord records a fact that names no new symbol, only a value
// the load phase must reproduce.
func (m *Manager) addValueRecord(r facts.Record) error {
	if m.heuristicDepth > 0 {
		return nil
	}
	if m.insertRecord(r) {
		m.log.Debug("record added", "record", facts.Format(r))
	}
	return nil
}

// beholderOf maps a constant pool to its owning class, the beholder of
// every FromCP record.
func (m *Manager) beholderOf(op string, cp facts.ConstPoolRef) (facts.ClassRef, error) {
	beholder := m.env.OwnerOfConstantPool(cp)
	if beholder == 0 {
		return 0, m.logicErr(op, "constant pool %d has no owner", cp)
	}
	return beholder, nil
}

func (m *Manager) AddClassByNameRecord(class, beholder facts.ClassRef) error {
	const op = "add class by name"
	if class == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.ClassByName{Class: class, Beholder: beholder}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addClassRecord(op, class, r)
}

func (m *Manager) AddProfiledClassRecord(class facts.ClassRef) error {
	const op = "add profiled class"
	if class == 0 || m.heuristicDepth > 0 {
		return nil
	}
	// Chains name loadable classes; a profiled array type is pinned
	// through its leaf component. The array dimensions themselves are
	// seen but get no record and no ID.
	for m.env.IsArrayClass(class) {
		m.seenClasses[class] = struct{}{}
		class = m.env.ComponentClass(class)
		if class == 0 {
			return m.logicErr(op, "array class has no leaf component")
		}
	}
	chain := m.env.ChainOf(class)
	if chain == 0 {
		return newMissingSymbolError(op, "no chain for class %q", m.env.ClassName(class))
	}
	return m.addRootClassRecord(op, class, facts.ProfiledClass{Class: class, Chain: chain})
}

func (m *Manager) AddClassFromCPRecord(class facts.ClassRef, cp facts.ConstPoolRef, cpIndex uint32) error {
	const op = "add class from cp"
	if class == 0 || m.heuristicDepth > 0 {
		return nil
	}
	beholder, err := m.beholderOf(op, cp)
	if err != nil {
		return err
	}
	r := facts.ClassFromCP{Class: class, Beholder: beholder, CPIndex: cpIndex}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addClassRecord(op, class, r)
}

func (m *Manager) AddDefiningClassFromCPRecord(class facts.ClassRef, cp facts.ConstPoolRef, cpIndex uint32, isStatic bool) error {
	const op = "add defining class from cp"
	if class == 0 || m.heuristicDepth > 0 {
		return nil
	}
	beholder, err := m.beholderOf(op, cp)
	if err != nil {
		return err
	}
	r := facts.DefiningClassFromCP{Class: class, Beholder: beholder, CPIndex: cpIndex, IsStatic: isStatic}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addClassRecord(op, class, r)
}

func (m *Manager) AddStaticClassFromCPRecord(class facts.ClassRef, cp facts.ConstPoolRef, cpIndex uint32) error {
	const op = "add static class from cp"
	if class == 0 || m.heuristicDepth > 0 {
		return nil
	}
	beholder, err := m.beholderOf(op, cp)
	if err != nil {
		return err
	}
	r := facts.StaticClassFromCP{Class: class, Beholder: beholder, CPIndex: cpIndex}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addClassRecord(op, class, r)
}

func (m *Manager) AddClassFromMethodRecord(class facts.ClassRef, method facts.MethodRef) error {
	const op = "add class from method"
	if class == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.ClassFromMethod{Class: class, Method: method}
	if err := m.witnessMethod(op, r, "source", method); err != nil {
		return err
	}
	return m.addClassRecord(op, class, r)
}

func (m *Manager) AddComponentClassFromArrayClassRecord(component, array facts.ClassRef) error {
	const op = "add component class from array class"
	if component == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.ComponentClassFromArrayClass{Component: component, Array: array}
	if err := m.witnessClass(op, r, "array", array); err != nil {
		return err
	}
	return m.addClassRecord(op, component, r)
}

func (m *Manager) AddArrayClassFromComponentClassRecord(array, component facts.ClassRef) error {
	const op = "add array class from component class"
	if array == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.ArrayClassFromComponentClass{Array: array, Component: component}
	if err := m.witnessClass(op, r, "component", component); err != nil {
		return err
	}
	// The component is validated already, so there is nothing to
	// unroll below the new array class.
	return m.addRootClassRecord(op, array, r)
}

func (m *Manager) AddSuperClassFromClassRecord(super, child facts.ClassRef) error {
	const op = "add super class from class"
	if super == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.SuperClassFromClass{Super: super, Child: child}
	if err := m.witnessClass(op, r, "child", child); err != nil {
		return err
	}
	return m.addClassRecord(op, super, r)
}

func (m *Manager) AddClassInstanceOfClassRecord(classOne, classTwo facts.ClassRef, objectTypeIsFixed, castTypeIsFixed, isInstanceOf bool) error {
	const op = "add class instance of class"
	if m.heuristicDepth > 0 {
		return nil
	}
	r := facts.ClassInstanceOfClass{
		ClassOne:          classOne,
		ClassTwo:          classTwo,
		ObjectTypeIsFixed: objectTypeIsFixed,
		CastTypeIsFixed:   castTypeIsFixed,
		IsInstanceOf:      isInstanceOf,
	}
	if err := m.witnessClass(op, r, "class one", classOne); err != nil {
		return err
	}
	if err := m.witnessClass(op, r, "class two", classTwo); err != nil {
		return err
	}
	return m.addValueRecord(r)
}

func (m *Manager) AddSystemClassByNameRecord(systemClass facts.ClassRef) error {
	const op = "add system class by name"
	return m.addClassRecord(op, systemClass, facts.SystemClassByName{SystemClass: systemClass})
}

func (m *Manager) AddClassFromITableIndexCPRecord(class facts.ClassRef, cp facts.ConstPoolRef, cpIndex int32) error {
	const op = "add class from itable index cp"
	if class == 0 || m.heuristicDepth > 0 {
		return nil
	}
	beholder, err := m.beholderOf(op, cp)
	if err != nil {
		return err
	}
	r := facts.ClassFromITableIndexCP{Class: class, Beholder: beholder, CPIndex: cpIndex}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addClassRecord(op, class, r)
}

func (m *Manager) AddDeclaringClassFromFieldOrStaticRecord(class facts.ClassRef, cp facts.ConstPoolRef, cpIndex int32) error {
	const op = "add declaring class from field or static"
	if class == 0 || m.heuristicDepth > 0 {
		return nil
	}
	beholder, err := m.beholderOf(op, cp)
	if err != nil {
		return err
	}
	r := facts.DeclaringClassFromFieldOrStatic{Class: class, Beholder: beholder, CPIndex: cpIndex}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addClassRecord(op, class, r)
}

func (m *Manager) AddClassClassRecord(classClass, objectClass facts.ClassRef) error {
	const op = "add class class"
	if classClass == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.ClassClass{ClassClass: classClass, ObjectClass: objectClass}
	if err := m.witnessClass(op, r, "object class", objectClass); err != nil {
		return err
	}
	return m.addRootClassRecord(op, classClass, r)
}

func (m *Manager) AddConcreteSubClassRecord(child, super facts.ClassRef) error {
	const op = "add concrete sub class"
	if child == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.ConcreteSubClassFromClass{Child: child, Super: super}
	if err := m.witnessClass(op, r, "super", super); err != nil {
		return err
	}
	return m.addClassRecord(op, child, r)
}

func (m *Manager) AddClassChainRecord(class facts.ClassRef) error {
	const op = "add class chain"
	if class == 0 || m.heuristicDepth > 0 {
		return nil
	}
	chain := m.env.ChainOf(class)
	if chain == 0 {
		return newMissingSymbolError(op, "no chain for class %q", m.env.ClassName(class))
	}
	r := facts.ClassChain{Class: class, Chain: chain}
	if err := m.witnessClass(op, r, "class", class); err != nil {
		return err
	}
	return m.addValueRecord(r)
}

func (m *Manager) AddMethodFromClassRecord(method facts.MethodRef, beholder facts.ClassRef, index uint32) error {
	const op = "add method from class"
	if method == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.MethodFromClass{Method: method, Beholder: beholder, Index: index}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addMethodRecord(op, method, r)
}

func (m *Manager) AddStaticMethodFromCPRecord(method facts.MethodRef, cp facts.ConstPoolRef, cpIndex int32) error {
	const op = "add static method from cp"
	if method == 0 || m.heuristicDepth > 0 {
		return nil
	}
	beholder, err := m.beholderOf(op, cp)
	if err != nil {
		return err
	}
	r := facts.StaticMethodFromCP{Method: method, Beholder: beholder, CPIndex: cpIndex}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addMethodRecord(op, method, r)
}

func (m *Manager) AddSpecialMethodFromCPRecord(method facts.MethodRef, cp facts.ConstPoolRef, cpIndex int32) error {
	const op = "add special method from cp"
	if method == 0 || m.heuristicDepth > 0 {
		return nil
	}
	beholder, err := m.beholderOf(op, cp)
	if err != nil {
		return err
	}
	r := facts.SpecialMethodFromCP{Method: method, Beholder: beholder, CPIndex: cpIndex}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addMethodRecord(op, method, r)
}

func (m *Manager) AddVirtualMethodFromCPRecord(method facts.MethodRef, cp facts.ConstPoolRef, cpIndex int32) error {
	const op = "add virtual method from cp"
	if method == 0 || m.heuristicDepth > 0 {
		return nil
	}
	beholder, err := m.beholderOf(op, cp)
	if err != nil {
		return err
	}
	r := facts.VirtualMethodFromCP{Method: method, Beholder: beholder, CPIndex: cpIndex}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addMethodRecord(op, method, r)
}

func (m *Manager) AddVirtualMethodFromOffsetRecord(method facts.MethodRef, beholder facts.ClassRef, virtualCallOffset int32, ignoreRtResolve bool) error {
	const op = "add virtual method from offset"
	if method == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.VirtualMethodFromOffset{
		Method:            method,
		Beholder:          beholder,
		VirtualCallOffset: virtualCallOffset,
		IgnoreRtResolve:   ignoreRtResolve,
	}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addMethodRecord(op, method, r)
}

func (m *Manager) AddInterfaceMethodFromCPRecord(method facts.MethodRef, cp facts.ConstPoolRef, lookup facts.ClassRef, cpIndex int32) error {
	const op = "add interface method from cp"
	if method == 0 || m.heuristicDepth > 0 {
		return nil
	}
	beholder, err := m.beholderOf(op, cp)
	if err != nil {
		return err
	}
	r := facts.InterfaceMethodFromCP{Method: method, Beholder: beholder, Lookup: lookup, CPIndex: cpIndex}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	if err := m.witnessClass(op, r, "lookup", lookup); err != nil {
		return err
	}
	return m.addMethodRecord(op, method, r)
}

func (m *Manager) AddImproperInterfaceMethodFromCPRecord(method facts.MethodRef, cp facts.ConstPoolRef, cpIndex int32) error {
	const op = "add improper interface method from cp"
	if method == 0 || m.heuristicDepth > 0 {
		return nil
	}
	beholder, err := m.beholderOf(op, cp)
	if err != nil {
		return err
	}
	r := facts.ImproperInterfaceMethodFromCP{Method: method, Beholder: beholder, CPIndex: cpIndex}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addMethodRecord(op, method, r)
}

func (m *Manager) AddMethodFromClassAndSigRecord(method facts.MethodRef, methodClass, beholder facts.ClassRef) error {
	const op = "add method from class and sig"
	if method == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.MethodFromClassAndSig{Method: method, MethodClass: methodClass, Beholder: beholder}
	if err := m.witnessClass(op, r, "method class", methodClass); err != nil {
		return err
	}
	if err := m.witnessClass(op, r, "beholder", beholder); err != nil {
		return err
	}
	return m.addMethodRecord(op, method, r)
}

func (m *Manager) AddMethodFromSingleImplementerRecord(method facts.MethodRef, thisClass facts.ClassRef, cpIndexOrVftSlot int32, callerMethod facts.MethodRef, useGetResolvedInterfaceMethod facts.YesNoMaybe) error {
	const op = "add method from single implementer"
	if method == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.MethodFromSingleImplementer{
		Method:                        method,
		ThisClass:                     thisClass,
		CPIndexOrVftSlot:              cpIndexOrVftSlot,
		CallerMethod:                  callerMethod,
		UseGetResolvedInterfaceMethod: useGetResolvedInterfaceMethod,
	}
	if err := m.witnessClass(op, r, "this class", thisClass); err != nil {
		return err
	}
	if err := m.witnessMethod(op, r, "caller", callerMethod); err != nil {
		return err
	}
	return m.addMethodRecord(op, method, r)
}

func (m *Manager) AddMethodFromSingleInterfaceImplementerRecord(method facts.MethodRef, thisClass facts.ClassRef, cpIndex int32, callerMethod facts.MethodRef) error {
	const op = "add method from single interface implementer"
	if method == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.MethodFromSingleInterfaceImplementer{
		Method:       method,
		ThisClass:    thisClass,
		CPIndex:      cpIndex,
		CallerMethod: callerMethod,
	}
	if err := m.witnessClass(op, r, "this class", thisClass); err != nil {
		return err
	}
	if err := m.witnessMethod(op, r, "caller", callerMethod); err != nil {
		return err
	}
	return m.addMethodRecord(op, method, r)
}

func (m *Manager) AddMethodFromSingleAbstractImplementerRecord(method facts.MethodRef, thisClass facts.ClassRef, vftSlot int32, callerMethod facts.MethodRef) error {
	const op = "add method from single abstract implementer"
	if method == 0 || m.heuristicDepth > 0 {
		return nil
	}
	r := facts.MethodFromSingleAbstractImplementer{
		Method:       method,
		ThisClass:    thisClass,
		VftSlot:      vftSlot,
		CallerMethod: callerMethod,
	}
	if err := m.witnessClass(op, r, "this class", thisClass); err != nil {
		return err
	}
	if err := m.witnessMethod(op, r, "caller", callerMethod); err != nil {
		return err
	}
	return m.addMethodRecord(op, method, r)
}

func (m *Manager) AddStackWalkerMaySkipFramesRecord(method facts.MethodRef, methodClass facts.ClassRef, skipFrames bool) error {
	const op = "add stack walker may skip frames"
	if m.heuristicDepth > 0 {
		return nil
	}
	r := facts.StackWalkerMaySkipFrames{Method: method, MethodClass: methodClass, SkipFrames: skipFrames}
	if err := m.witnessMethod(op, r, "method", method); err != nil {
		return err
	}
	if err := m.witnessClass(op, r, "method class", methodClass); err != nil {
		return err
	}
	return m.addValueRecord(r)
}

func (m *Manager) AddClassInfoIsInitializedRecord(class facts.ClassRef, isInitialized bool) error {
	const op = "add class info is initialized"
	if m.heuristicDepth > 0 {
		return nil
	}
	r := facts.ClassInfoIsInitialized{Class: class, IsInitialized: isInitialized}
	if err := m.witnessClass(op, r, "class", class); err != nil {
		return err
	}
	return m.addValueRecord(r)
}
