package svm

import (
	"errors"

	"github.com/ibmruntimes/aotverify/internal/facts"
)

// Load-phase entry points. Each Validate method re-derives the
// recorded fact against the current runtime and binds the subject ID
// to the re-derived symbol, or confirms an earlier binding. Witness
// IDs must have been bound by earlier records in the stream; replay
// order guarantees that for any stream a compile session produced.

func (m *Manager) ValidateClassByNameRecord(classID, beholderID facts.ID, className string) error {
	const op = "validate class by name"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	class := m.env.ClassByName(className, m.env.LoaderOf(beholder))
	return m.bindClass(op, classID, class)
}

func (m *Manager) ValidateProfiledClassRecord(classID facts.ID, className string, chain facts.ChainRef) error {
	const op = "validate profiled class"
	loader := m.env.ChainLoader(chain)
	if loader == 0 {
		return newMissingSymbolError(op, "no loader for chain %d", chain)
	}
	class := m.env.ClassByName(className, loader)
	if class == 0 {
		return newMissingSymbolError(op, "class %q did not resolve", className)
	}
	if !m.env.ChainMatches(class, chain) {
		return newMismatchError(op, "class %s no longer matches its recorded chain", className)
	}
	return m.bindClass(op, classID, class)
}

func (m *Manager) ValidateClassFromCPRecord(classID, beholderID facts.ID, cpIndex uint32) error {
	const op = "validate class from cp"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	class := m.env.ClassFromCP(m.env.ConstantPoolOfClass(beholder), cpIndex)
	return m.bindClass(op, classID, class)
}

func (m *Manager) ValidateDefiningClassFromCPRecord(classID, beholderID facts.ID, cpIndex uint32, isStatic bool) error {
	const op = "validate defining class from cp"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	class := m.env.DefiningClassFromCP(m.env.ConstantPoolOfClass(beholder), cpIndex, isStatic)
	return m.bindClass(op, classID, class)
}

func (m *Manager) ValidateStaticClassFromCPRecord(classID, beholderID facts.ID, cpIndex uint32) error {
	const op = "validate static class from cp"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	class := m.env.StaticClassFromCP(m.env.ConstantPoolOfClass(beholder), cpIndex)
	return m.bindClass(op, classID, class)
}

func (m *Manager) ValidateClassFromMethodRecord(classID, methodID facts.ID) error {
	const op = "validate class from method"
	method, err := m.resolveMethodID(op, methodID)
	if err != nil {
		return err
	}
	return m.bindClass(op, classID, m.env.DefiningClassOfMethod(method))
}

func (m *Manager) ValidateComponentClassFromArrayClassRecord(componentClassID, arrayClassID facts.ID) error {
	const op = "validate component class from array class"
	array, err := m.resolveClassID(op, arrayClassID)
	if err != nil {
		return err
	}
	return m.bindClass(op, componentClassID, m.env.ComponentClass(array))
}

func (m *Manager) ValidateArrayClassFromComponentClassRecord(arrayClassID, componentClassID facts.ID) error {
	const op = "validate array class from component class"
	component, err := m.resolveClassID(op, componentClassID)
	if err != nil {
		return err
	}
	return m.bindClass(op, arrayClassID, m.env.ArrayClass(component))
}

func (m *Manager) ValidateSuperClassFromClassRecord(superClassID, childClassID facts.ID) error {
	const op = "validate super class from class"
	child, err := m.resolveClassID(op, childClassID)
	if err != nil {
		return err
	}
	return m.bindClass(op, superClassID, m.env.SuperClass(child))
}

func (m *Manager) ValidateClassInstanceOfClassRecord(classOneID, classTwoID facts.ID, objectTypeIsFixed, castTypeIsFixed, wasInstanceOf bool) error {
	const op = "validate class instance of class"
	one, err := m.resolveClassID(op, classOneID)
	if err != nil {
		return err
	}
	two, err := m.resolveClassID(op, classTwoID)
	if err != nil {
		return err
	}
	got := m.env.IsInstanceOf(one, two, objectTypeIsFixed, castTypeIsFixed)
	if got == facts.Maybe {
		return newMismatchError(op, "instance-of relation is no longer decidable")
	}
	if (got == facts.Yes) != wasInstanceOf {
		return newMismatchError(op, "instance-of relation changed since compilation")
	}
	return nil
}

func (m *Manager) ValidateSystemClassByNameRecord(systemClassID facts.ID, className string) error {
	const op = "validate system class by name"
	return m.bindClass(op, systemClassID, m.env.SystemClassByName(className))
}

func (m *Manager) ValidateClassFromITableIndexCPRecord(classID, beholderID facts.ID, cpIndex int32) error {
	const op = "validate class from itable index cp"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	class := m.env.ClassFromITableIndexCP(m.env.ConstantPoolOfClass(beholder), cpIndex)
	return m.bindClass(op, classID, class)
}

func (m *Manager) ValidateDeclaringClassFromFieldOrStaticRecord(classID, beholderID facts.ID, cpIndex int32) error {
	const op = "validate declaring class from field or static"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	class := m.env.DeclaringClassFromFieldOrStatic(m.env.ConstantPoolOfClass(beholder), cpIndex)
	return m.bindClass(op, classID, class)
}

func (m *Manager) ValidateClassClassRecord(classClassID, objectClassID facts.ID) error {
	const op = "validate class class"
	objectClass, err := m.resolveClassID(op, objectClassID)
	if err != nil {
		return err
	}
	return m.bindClass(op, classClassID, m.env.ClassClassPointer(objectClass))
}

func (m *Manager) ValidateConcreteSubClassRecord(childClassID, superClassID facts.ID) error {
	const op = "validate concrete sub class"
	super, err := m.resolveClassID(op, superClassID)
	if err != nil {
		return err
	}
	return m.bindClass(op, childClassID, m.env.ConcreteSubClass(super))
}

func (m *Manager) ValidateClassChainRecord(classID facts.ID, chain facts.ChainRef) error {
	const op = "validate class chain"
	class, err := m.resolveClassID(op, classID)
	if err != nil {
		return err
	}
	if !m.env.ChainMatches(class, chain) {
		return newMismatchError(op, "class no longer matches its recorded chain")
	}
	return nil
}

func (m *Manager) ValidateMethodFromClassRecord(methodID, beholderID facts.ID, index uint32) error {
	const op = "validate method from class"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	return m.bindMethod(op, methodID, m.env.MethodAtIndex(beholder, index))
}

func (m *Manager) ValidateStaticMethodFromCPRecord(methodID, beholderID facts.ID, cpIndex int32) error {
	const op = "validate static method from cp"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	method := m.env.StaticMethodFromCP(m.env.ConstantPoolOfClass(beholder), cpIndex)
	return m.bindMethod(op, methodID, method)
}

func (m *Manager) ValidateSpecialMethodFromCPRecord(methodID, beholderID facts.ID, cpIndex int32) error {
	const op = "validate special method from cp"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	method := m.env.SpecialMethodFromCP(m.env.ConstantPoolOfClass(beholder), cpIndex)
	return m.bindMethod(op, methodID, method)
}

func (m *Manager) ValidateVirtualMethodFromCPRecord(methodID, beholderID facts.ID, cpIndex int32) error {
	const op = "validate virtual method from cp"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	method := m.env.VirtualMethodFromCP(m.env.ConstantPoolOfClass(beholder), cpIndex)
	return m.bindMethod(op, methodID, method)
}

func (m *Manager) ValidateVirtualMethodFromOffsetRecord(methodID, beholderID facts.ID, virtualCallOffset int32, ignoreRtResolve bool) error {
	const op = "validate virtual method from offset"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	method := m.env.VirtualMethodAtOffset(beholder, virtualCallOffset, ignoreRtResolve)
	return m.bindMethod(op, methodID, method)
}

func (m *Manager) ValidateInterfaceMethodFromCPRecord(methodID, beholderID, lookupID facts.ID, cpIndex int32) error {
	const op = "validate interface method from cp"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	lookup, err := m.resolveClassID(op, lookupID)
	if err != nil {
		return err
	}
	method := m.env.InterfaceMethodFromCP(m.env.ConstantPoolOfClass(beholder), lookup, cpIndex)
	return m.bindMethod(op, methodID, method)
}

func (m *Manager) ValidateImproperInterfaceMethodFromCPRecord(methodID, beholderID facts.ID, cpIndex int32) error {
	const op = "validate improper interface method from cp"
	beholder, err := m.resolveClassID(op, beholderID)
	if err != nil {
		return err
	}
	method := m.env.ImproperInterfaceMethodFromCP(m.env.ConstantPoolOfClass(beholder), cpIndex)
	return m.bindMethod(op, methodID, method)
}

func (m *Manager) ValidateMethodFromClassAndSigRecord(methodID, methodClassID, beholderID facts.ID, methodName, methodSig string) error {
	const op = "validate method from class and sig"
	methodClass, err := m.resolveClassID(op, methodClassID)
	if err != nil {
		return err
	}
	if _, err := m.resolveClassID(op, beholderID); err != nil {
		return err
	}
	method := m.env.MethodByNameAndSig(methodClass, methodName, methodSig)
	return m.bindMethod(op, methodID, method)
}

func (m *Manager) ValidateMethodFromSingleImplementerRecord(methodID, thisClassID facts.ID, cpIndexOrVftSlot int32, callerMethodID facts.ID, useGetResolvedInterfaceMethod facts.YesNoMaybe) error {
	const op = "validate method from single implementer"
	thisClass, err := m.resolveClassID(op, thisClassID)
	if err != nil {
		return err
	}
	caller, err := m.resolveMethodID(op, callerMethodID)
	if err != nil {
		return err
	}
	method := m.env.SingleImplementer(thisClass, cpIndexOrVftSlot, caller, useGetResolvedInterfaceMethod)
	return m.bindMethod(op, methodID, method)
}

func (m *Manager) ValidateMethodFromSingleInterfaceImplementerRecord(methodID, thisClassID facts.ID, cpIndex int32, callerMethodID facts.ID) error {
	const op = "validate method from single interface implementer"
	thisClass, err := m.resolveClassID(op, thisClassID)
	if err != nil {
		return err
	}
	caller, err := m.resolveMethodID(op, callerMethodID)
	if err != nil {
		return err
	}
	method := m.env.SingleInterfaceImplementer(thisClass, cpIndex, caller)
	return m.bindMethod(op, methodID, method)
}

func (m *Manager) ValidateMethodFromSingleAbstractImplementerRecord(methodID, thisClassID facts.ID, vftSlot int32, callerMethodID facts.ID) error {
	const op = "validate method from single abstract implementer"
	thisClass, err := m.resolveClassID(op, thisClassID)
	if err != nil {
		return err
	}
	caller, err := m.resolveMethodID(op, callerMethodID)
	if err != nil {
		return err
	}
	method := m.env.SingleAbstractImplementer(thisClass, vftSlot, caller)
	return m.bindMethod(op, methodID, method)
}

func (m *Manager) ValidateStackWalkerMaySkipFramesRecord(methodID, methodClassID facts.ID, skipFrames bool) error {
	const op = "validate stack walker may skip frames"
	method, err := m.resolveMethodID(op, methodID)
	if err != nil {
		return err
	}
	methodClass, err := m.resolveClassID(op, methodClassID)
	if err != nil {
		return err
	}
	if m.env.StackWalkerMaySkipFrames(method, methodClass) != skipFrames {
		return newMismatchError(op, "skip-frames policy changed since compilation")
	}
	return nil
}

func (m *Manager) ValidateClassInfoIsInitializedRecord(classID facts.ID, isInitialized bool) error {
	const op = "validate class info is initialized"
	class, err := m.resolveClassID(op, classID)
	if err != nil {
		return err
	}
	if m.env.IsInitialized(class) != isInitialized {
		return newMismatchError(op, "initialization status changed since compilation")
	}
	return nil
}

// ValidateWire dispatches a decoded wire record to its Validate entry
// point. A failing record is rendered into the error so the trace
// identifies which record of the stream rejected the artifact.
func (m *Manager) ValidateWire(w facts.Wire) error {
	err := m.validateWire(w)
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) && se.Record == "" {
		if b, encErr := facts.EncodeWire(w); encErr == nil {
			se.Record = string(b)
		}
	}
	return err
}

func (m *Manager) validateWire(w facts.Wire) error {
	switch v := w.(type) {
	case facts.WireClassByName:
		return m.ValidateClassByNameRecord(v.ClassID, v.BeholderID, v.ClassName)
	case facts.WireProfiledClass:
		return m.ValidateProfiledClassRecord(v.ClassID, v.ClassName, v.Chain)
	case facts.WireClassFromCP:
		return m.ValidateClassFromCPRecord(v.ClassID, v.BeholderID, v.CPIndex)
	case facts.WireDefiningClassFromCP:
		return m.ValidateDefiningClassFromCPRecord(v.ClassID, v.BeholderID, v.CPIndex, v.IsStatic)
	case facts.WireStaticClassFromCP:
		return m.ValidateStaticClassFromCPRecord(v.ClassID, v.BeholderID, v.CPIndex)
	case facts.WireClassFromMethod:
		return m.ValidateClassFromMethodRecord(v.ClassID, v.MethodID)
	case facts.WireComponentClassFromArrayClass:
		return m.ValidateComponentClassFromArrayClassRecord(v.ComponentClassID, v.ArrayClassID)
	case facts.WireArrayClassFromComponentClass:
		return m.ValidateArrayClassFromComponentClassRecord(v.ArrayClassID, v.ComponentClassID)
	case facts.WireSuperClassFromClass:
		return m.ValidateSuperClassFromClassRecord(v.SuperClassID, v.ChildClassID)
	case facts.WireClassInstanceOfClass:
		return m.ValidateClassInstanceOfClassRecord(v.ClassOneID, v.ClassTwoID, v.ObjectTypeIsFixed, v.CastTypeIsFixed, v.IsInstanceOf)
	case facts.WireSystemClassByName:
		return m.ValidateSystemClassByNameRecord(v.SystemClassID, v.ClassName)
	case facts.WireClassFromITableIndexCP:
		return m.ValidateClassFromITableIndexCPRecord(v.ClassID, v.BeholderID, v.CPIndex)
	case facts.WireDeclaringClassFromFieldOrStatic:
		return m.ValidateDeclaringClassFromFieldOrStaticRecord(v.ClassID, v.BeholderID, v.CPIndex)
	case facts.WireClassClass:
		return m.ValidateClassClassRecord(v.ClassClassID, v.ObjectClassID)
	case facts.WireConcreteSubClassFromClass:
		return m.ValidateConcreteSubClassRecord(v.ChildClassID, v.SuperClassID)
	case facts.WireClassChain:
		return m.ValidateClassChainRecord(v.ClassID, v.Chain)
	case facts.WireMethodFromClass:
		return m.ValidateMethodFromClassRecord(v.MethodID, v.BeholderID, v.Index)
	case facts.WireStaticMethodFromCP:
		return m.ValidateStaticMethodFromCPRecord(v.MethodID, v.BeholderID, v.CPIndex)
	case facts.WireSpecialMethodFromCP:
		return m.ValidateSpecialMethodFromCPRecord(v.MethodID, v.BeholderID, v.CPIndex)
	case facts.WireVirtualMethodFromCP:
		return m.ValidateVirtualMethodFromCPRecord(v.MethodID, v.BeholderID, v.CPIndex)
	case facts.WireVirtualMethodFromOffset:
		return m.ValidateVirtualMethodFromOffsetRecord(v.MethodID, v.BeholderID, v.VirtualCallOffset, v.IgnoreRtResolve)
	case facts.WireInterfaceMethodFromCP:
		return m.ValidateInterfaceMethodFromCPRecord(v.MethodID, v.BeholderID, v.LookupID, v.CPIndex)
	case facts.WireImproperInterfaceMethodFromCP:
		return m.ValidateImproperInterfaceMethodFromCPRecord(v.MethodID, v.BeholderID, v.CPIndex)
	case facts.WireMethodFromClassAndSig:
		return m.ValidateMethodFromClassAndSigRecord(v.MethodID, v.MethodClassID, v.BeholderID, v.MethodName, v.MethodSig)
	case facts.WireMethodFromSingleImplementer:
		return m.ValidateMethodFromSingleImplementerRecord(v.MethodID, v.ThisClassID, v.CPIndexOrVftSlot, v.CallerMethodID, v.UseGetResolvedInterfaceMethod)
	case facts.WireMethodFromSingleInterfaceImplementer:
		return m.ValidateMethodFromSingleInterfaceImplementerRecord(v.MethodID, v.ThisClassID, v.CPIndex, v.CallerMethodID)
	case facts.WireMethodFromSingleAbstractImplementer:
		return m.ValidateMethodFromSingleAbstractImplementerRecord(v.MethodID, v.ThisClassID, v.VftSlot, v.CallerMethodID)
	case facts.WireStackWalkerMaySkipFrames:
		return m.ValidateStackWalkerMaySkipFramesRecord(v.MethodID, v.MethodClassID, v.SkipFrames)
	case facts.WireClassInfoIsInitialized:
		return m.ValidateClassInfoIsInitializedRecord(v.ClassID, v.IsInitialized)
	default:
		return m.logicErr("validate wire", "unhandled wire record %T", w)
	}
}

// ValidateAll replays a full record stream in order.
func (m *Manager) ValidateAll(records []facts.Wire) error {
	for _, w := range records {
		if err := m.ValidateWire(w); err != nil {
			return err
		}
	}
	return nil
}
