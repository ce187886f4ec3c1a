package svm

import (
	"github.com/ibmruntimes/aotverify/internal/facts"
)

// WireRecords renders the accumulated stream in its persisted form:
// handles replaced by session IDs, plus the names the load phase needs
// to re-derive symbols from scratch. The stream keeps generation
// order.
func (m *Manager) WireRecords() ([]facts.Wire, error) {
	out := make([]facts.Wire, 0, len(m.records))
	for _, r := range m.records {
		w, err := m.wireRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// EncodeRecords is WireRecords followed by canonical encoding, one
// payload per record.
func (m *Manager) EncodeRecords() ([][]byte, error) {
	wires, err := m.WireRecords()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(wires))
	for _, w := range wires {
		b, err := facts.EncodeWire(w)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *Manager) classIDOf(op string, r facts.Record, c facts.ClassRef) (facts.ID, error) {
	id, ok := m.classIDs[c]
	if !ok {
		return facts.NoID, m.recordLogicErr(op, r, "class %d has no ID", c)
	}
	return id, nil
}

func (m *Manager) methodIDOf(op string, r facts.Record, mr facts.MethodRef) (facts.ID, error) {
	id, ok := m.methodIDs[mr]
	if !ok {
		return facts.NoID, m.recordLogicErr(op, r, "method %d has no ID", mr)
	}
	return id, nil
}

func (m *Manager) wireRecord(r facts.Record) (facts.Wire, error) {
	const op = "wire record"
	switch v := r.(type) {
	case facts.ClassByName:
		classID, err := m.classIDOf(op, r, v.Class)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireClassByName{
			ClassID:    classID,
			BeholderID: beholderID,
			ClassName:  m.env.ClassName(v.Class),
		}, nil

	case facts.ProfiledClass:
		classID, err := m.classIDOf(op, r, v.Class)
		if err != nil {
			return nil, err
		}
		return facts.WireProfiledClass{
			ClassID:   classID,
			ClassName: m.env.ClassName(v.Class),
			Chain:     v.Chain,
		}, nil

	case facts.ClassFromCP:
		classID, err := m.classIDOf(op, r, v.Class)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireClassFromCP{ClassID: classID, BeholderID: beholderID, CPIndex: v.CPIndex}, nil

	case facts.DefiningClassFromCP:
		classID, err := m.classIDOf(op, r, v.Class)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireDefiningClassFromCP{
			ClassID:    classID,
			BeholderID: beholderID,
			CPIndex:    v.CPIndex,
			IsStatic:   v.IsStatic,
		}, nil

	case facts.StaticClassFromCP:
		classID, err := m.classIDOf(op, r, v.Class)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireStaticClassFromCP{ClassID: classID, BeholderID: beholderID, CPIndex: v.CPIndex}, nil

	case facts.ClassFromMethod:
		classID, err := m.classIDOf(op, r, v.Class)
		if err != nil {
			return nil, err
		}
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		return facts.WireClassFromMethod{ClassID: classID, MethodID: methodID}, nil

	case facts.ComponentClassFromArrayClass:
		componentID, err := m.classIDOf(op, r, v.Component)
		if err != nil {
			return nil, err
		}
		arrayID, err := m.classIDOf(op, r, v.Array)
		if err != nil {
			return nil, err
		}
		return facts.WireComponentClassFromArrayClass{ComponentClassID: componentID, ArrayClassID: arrayID}, nil

	case facts.ArrayClassFromComponentClass:
		arrayID, err := m.classIDOf(op, r, v.Array)
		if err != nil {
			return nil, err
		}
		componentID, err := m.classIDOf(op, r, v.Component)
		if err != nil {
			return nil, err
		}
		return facts.WireArrayClassFromComponentClass{ArrayClassID: arrayID, ComponentClassID: componentID}, nil

	case facts.SuperClassFromClass:
		superID, err := m.classIDOf(op, r, v.Super)
		if err != nil {
			return nil, err
		}
		childID, err := m.classIDOf(op, r, v.Child)
		if err != nil {
			return nil, err
		}
		return facts.WireSuperClassFromClass{SuperClassID: superID, ChildClassID: childID}, nil

	case facts.ClassInstanceOfClass:
		oneID, err := m.classIDOf(op, r, v.ClassOne)
		if err != nil {
			return nil, err
		}
		twoID, err := m.classIDOf(op, r, v.ClassTwo)
		if err != nil {
			return nil, err
		}
		return facts.WireClassInstanceOfClass{
			ClassOneID:        oneID,
			ClassTwoID:        twoID,
			ObjectTypeIsFixed: v.ObjectTypeIsFixed,
			CastTypeIsFixed:   v.CastTypeIsFixed,
			IsInstanceOf:      v.IsInstanceOf,
		}, nil

	case facts.SystemClassByName:
		classID, err := m.classIDOf(op, r, v.SystemClass)
		if err != nil {
			return nil, err
		}
		return facts.WireSystemClassByName{
			SystemClassID: classID,
			ClassName:     m.env.ClassName(v.SystemClass),
		}, nil

	case facts.ClassFromITableIndexCP:
		classID, err := m.classIDOf(op, r, v.Class)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireClassFromITableIndexCP{ClassID: classID, BeholderID: beholderID, CPIndex: v.CPIndex}, nil

	case facts.DeclaringClassFromFieldOrStatic:
		classID, err := m.classIDOf(op, r, v.Class)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireDeclaringClassFromFieldOrStatic{ClassID: classID, BeholderID: beholderID, CPIndex: v.CPIndex}, nil

	case facts.ClassClass:
		classClassID, err := m.classIDOf(op, r, v.ClassClass)
		if err != nil {
			return nil, err
		}
		objectClassID, err := m.classIDOf(op, r, v.ObjectClass)
		if err != nil {
			return nil, err
		}
		return facts.WireClassClass{ClassClassID: classClassID, ObjectClassID: objectClassID}, nil

	case facts.ConcreteSubClassFromClass:
		childID, err := m.classIDOf(op, r, v.Child)
		if err != nil {
			return nil, err
		}
		superID, err := m.classIDOf(op, r, v.Super)
		if err != nil {
			return nil, err
		}
		return facts.WireConcreteSubClassFromClass{ChildClassID: childID, SuperClassID: superID}, nil

	case facts.ClassChain:
		classID, err := m.classIDOf(op, r, v.Class)
		if err != nil {
			return nil, err
		}
		return facts.WireClassChain{ClassID: classID, Chain: v.Chain}, nil

	case facts.MethodFromClass:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireMethodFromClass{MethodID: methodID, BeholderID: beholderID, Index: v.Index}, nil

	case facts.StaticMethodFromCP:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireStaticMethodFromCP{MethodID: methodID, BeholderID: beholderID, CPIndex: v.CPIndex}, nil

	case facts.SpecialMethodFromCP:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireSpecialMethodFromCP{MethodID: methodID, BeholderID: beholderID, CPIndex: v.CPIndex}, nil

	case facts.VirtualMethodFromCP:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireVirtualMethodFromCP{MethodID: methodID, BeholderID: beholderID, CPIndex: v.CPIndex}, nil

	case facts.VirtualMethodFromOffset:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireVirtualMethodFromOffset{
			MethodID:          methodID,
			BeholderID:        beholderID,
			VirtualCallOffset: v.VirtualCallOffset,
			IgnoreRtResolve:   v.IgnoreRtResolve,
		}, nil

	case facts.InterfaceMethodFromCP:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		lookupID, err := m.classIDOf(op, r, v.Lookup)
		if err != nil {
			return nil, err
		}
		return facts.WireInterfaceMethodFromCP{
			MethodID:   methodID,
			BeholderID: beholderID,
			LookupID:   lookupID,
			CPIndex:    v.CPIndex,
		}, nil

	case facts.ImproperInterfaceMethodFromCP:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		return facts.WireImproperInterfaceMethodFromCP{MethodID: methodID, BeholderID: beholderID, CPIndex: v.CPIndex}, nil

	case facts.MethodFromClassAndSig:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		methodClassID, err := m.classIDOf(op, r, v.MethodClass)
		if err != nil {
			return nil, err
		}
		beholderID, err := m.classIDOf(op, r, v.Beholder)
		if err != nil {
			return nil, err
		}
		name, sig := m.env.MethodName(v.Method)
		return facts.WireMethodFromClassAndSig{
			MethodID:      methodID,
			MethodClassID: methodClassID,
			BeholderID:    beholderID,
			MethodName:    name,
			MethodSig:     sig,
		}, nil

	case facts.MethodFromSingleImplementer:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		thisClassID, err := m.classIDOf(op, r, v.ThisClass)
		if err != nil {
			return nil, err
		}
		callerID, err := m.methodIDOf(op, r, v.CallerMethod)
		if err != nil {
			return nil, err
		}
		return facts.WireMethodFromSingleImplementer{
			MethodID:                      methodID,
			ThisClassID:                   thisClassID,
			CPIndexOrVftSlot:              v.CPIndexOrVftSlot,
			CallerMethodID:                callerID,
			UseGetResolvedInterfaceMethod: v.UseGetResolvedInterfaceMethod,
		}, nil

	case facts.MethodFromSingleInterfaceImplementer:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		thisClassID, err := m.classIDOf(op, r, v.ThisClass)
		if err != nil {
			return nil, err
		}
		callerID, err := m.methodIDOf(op, r, v.CallerMethod)
		if err != nil {
			return nil, err
		}
		return facts.WireMethodFromSingleInterfaceImplementer{
			MethodID:       methodID,
			ThisClassID:    thisClassID,
			CPIndex:        v.CPIndex,
			CallerMethodID: callerID,
		}, nil

	case facts.MethodFromSingleAbstractImplementer:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		thisClassID, err := m.classIDOf(op, r, v.ThisClass)
		if err != nil {
			return nil, err
		}
		callerID, err := m.methodIDOf(op, r, v.CallerMethod)
		if err != nil {
			return nil, err
		}
		return facts.WireMethodFromSingleAbstractImplementer{
			MethodID:       methodID,
			ThisClassID:    thisClassID,
			VftSlot:        v.VftSlot,
			CallerMethodID: callerID,
		}, nil

	case facts.StackWalkerMaySkipFrames:
		methodID, err := m.methodIDOf(op, r, v.Method)
		if err != nil {
			return nil, err
		}
		methodClassID, err := m.classIDOf(op, r, v.MethodClass)
		if err != nil {
			return nil, err
		}
		return facts.WireStackWalkerMaySkipFrames{
			MethodID:      methodID,
			MethodClassID: methodClassID,
			SkipFrames:    v.SkipFrames,
		}, nil

	case facts.ClassInfoIsInitialized:
		classID, err := m.classIDOf(op, r, v.Class)
		if err != nil {
			return nil, err
		}
		return facts.WireClassInfoIsInitialized{ClassID: classID, IsInitialized: v.IsInitialized}, nil

	default:
		return nil, m.recordLogicErr(op, r, "unhandled record type %T", r)
	}
}
