package harness

import (
	"fmt"

	"github.com/ibmruntimes/aotverify/internal/facts"
	"github.com/ibmruntimes/aotverify/internal/rtenv"
	"github.com/ibmruntimes/aotverify/internal/svm"
)

type stepEnv struct {
	snap *rtenv.Snapshot
}

// class resolves a fixture class name; the empty name is the zero
// handle, which scripts use to exercise nil-subject behavior.
func (e stepEnv) class(name string) (facts.ClassRef, error) {
	if name == "" {
		return 0, nil
	}
	return e.snap.MustClass(name)
}

func (e stepEnv) method(qualified string) (facts.MethodRef, error) {
	if qualified == "" {
		return 0, nil
	}
	return e.snap.MustMethod(qualified)
}

func (e stepEnv) pool(owner string) (facts.ConstPoolRef, error) {
	c, err := e.snap.MustClass(owner)
	if err != nil {
		return 0, err
	}
	return e.snap.ConstantPoolOfClass(c), nil
}

func yesNoMaybe(s string) (facts.YesNoMaybe, error) {
	switch s {
	case "", "maybe":
		return facts.Maybe, nil
	case "yes":
		return facts.Yes, nil
	case "no":
		return facts.No, nil
	default:
		return facts.Maybe, fmt.Errorf("bad use_interface %q", s)
	}
}

// applyStep executes one scripted operation against a compile session.
// Session errors pass through typed so the runner can classify them;
// anything else is a script error.
func applyStep(m *svm.Manager, snap *rtenv.Snapshot, step Step) error {
	e := stepEnv{snap: snap}

	switch step.Op {
	case "enter_heuristic_region":
		m.EnterHeuristicRegion()
		return nil
	case "exit_heuristic_region":
		return m.ExitHeuristicRegion()

	case "add_class_by_name":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		beholder, err := e.class(step.Beholder)
		if err != nil {
			return err
		}
		return m.AddClassByNameRecord(class, beholder)

	case "add_profiled_class":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		return m.AddProfiledClassRecord(class)

	case "add_class_from_cp":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		cp, err := e.pool(step.CP)
		if err != nil {
			return err
		}
		return m.AddClassFromCPRecord(class, cp, uint32(step.CPIndex))

	case "add_defining_class_from_cp":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		cp, err := e.pool(step.CP)
		if err != nil {
			return err
		}
		return m.AddDefiningClassFromCPRecord(class, cp, uint32(step.CPIndex), step.IsStatic)

	case "add_static_class_from_cp":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		cp, err := e.pool(step.CP)
		if err != nil {
			return err
		}
		return m.AddStaticClassFromCPRecord(class, cp, uint32(step.CPIndex))

	case "add_class_from_method":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		return m.AddClassFromMethodRecord(class, method)

	case "add_component_class_from_array_class":
		component, err := e.class(step.Component)
		if err != nil {
			return err
		}
		array, err := e.class(step.Array)
		if err != nil {
			return err
		}
		return m.AddComponentClassFromArrayClassRecord(component, array)

	case "add_array_class_from_component_class":
		array, err := e.class(step.Array)
		if err != nil {
			return err
		}
		component, err := e.class(step.Component)
		if err != nil {
			return err
		}
		return m.AddArrayClassFromComponentClassRecord(array, component)

	case "add_super_class_from_class":
		super, err := e.class(step.Super)
		if err != nil {
			return err
		}
		child, err := e.class(step.Child)
		if err != nil {
			return err
		}
		return m.AddSuperClassFromClassRecord(super, child)

	case "add_class_instance_of_class":
		one, err := e.class(step.ClassOne)
		if err != nil {
			return err
		}
		two, err := e.class(step.ClassTwo)
		if err != nil {
			return err
		}
		return m.AddClassInstanceOfClassRecord(one, two, step.ObjectTypeIsFixed, step.CastTypeIsFixed, step.IsInstanceOf)

	case "add_system_class_by_name":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		return m.AddSystemClassByNameRecord(class)

	case "add_class_from_itable_index_cp":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		cp, err := e.pool(step.CP)
		if err != nil {
			return err
		}
		return m.AddClassFromITableIndexCPRecord(class, cp, step.CPIndex)

	case "add_declaring_class_from_field_or_static":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		cp, err := e.pool(step.CP)
		if err != nil {
			return err
		}
		return m.AddDeclaringClassFromFieldOrStaticRecord(class, cp, step.CPIndex)

	case "add_class_class":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		objectClass, err := e.class(step.ObjectClass)
		if err != nil {
			return err
		}
		return m.AddClassClassRecord(class, objectClass)

	case "add_concrete_sub_class":
		child, err := e.class(step.Child)
		if err != nil {
			return err
		}
		super, err := e.class(step.Super)
		if err != nil {
			return err
		}
		return m.AddConcreteSubClassRecord(child, super)

	case "add_class_chain":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		return m.AddClassChainRecord(class)

	case "add_method_from_class":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		beholder, err := e.class(step.Beholder)
		if err != nil {
			return err
		}
		return m.AddMethodFromClassRecord(method, beholder, step.Index)

	case "add_static_method_from_cp":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		cp, err := e.pool(step.CP)
		if err != nil {
			return err
		}
		return m.AddStaticMethodFromCPRecord(method, cp, step.CPIndex)

	case "add_special_method_from_cp":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		cp, err := e.pool(step.CP)
		if err != nil {
			return err
		}
		return m.AddSpecialMethodFromCPRecord(method, cp, step.CPIndex)

	case "add_virtual_method_from_cp":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		cp, err := e.pool(step.CP)
		if err != nil {
			return err
		}
		return m.AddVirtualMethodFromCPRecord(method, cp, step.CPIndex)

	case "add_virtual_method_from_offset":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		beholder, err := e.class(step.Beholder)
		if err != nil {
			return err
		}
		return m.AddVirtualMethodFromOffsetRecord(method, beholder, step.Offset, step.IgnoreRtResolve)

	case "add_interface_method_from_cp":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		cp, err := e.pool(step.CP)
		if err != nil {
			return err
		}
		lookup, err := e.class(step.Lookup)
		if err != nil {
			return err
		}
		return m.AddInterfaceMethodFromCPRecord(method, cp, lookup, step.CPIndex)

	case "add_improper_interface_method_from_cp":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		cp, err := e.pool(step.CP)
		if err != nil {
			return err
		}
		return m.AddImproperInterfaceMethodFromCPRecord(method, cp, step.CPIndex)

	case "add_method_from_class_and_sig":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		methodClass, err := e.class(step.MethodClass)
		if err != nil {
			return err
		}
		beholder, err := e.class(step.Beholder)
		if err != nil {
			return err
		}
		return m.AddMethodFromClassAndSigRecord(method, methodClass, beholder)

	case "add_method_from_single_implementer":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		thisClass, err := e.class(step.ThisClass)
		if err != nil {
			return err
		}
		caller, err := e.method(step.Caller)
		if err != nil {
			return err
		}
		use, err := yesNoMaybe(step.UseInterface)
		if err != nil {
			return err
		}
		return m.AddMethodFromSingleImplementerRecord(method, thisClass, step.CPIndex, caller, use)

	case "add_method_from_single_interface_implementer":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		thisClass, err := e.class(step.ThisClass)
		if err != nil {
			return err
		}
		caller, err := e.method(step.Caller)
		if err != nil {
			return err
		}
		return m.AddMethodFromSingleInterfaceImplementerRecord(method, thisClass, step.CPIndex, caller)

	case "add_method_from_single_abstract_implementer":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		thisClass, err := e.class(step.ThisClass)
		if err != nil {
			return err
		}
		caller, err := e.method(step.Caller)
		if err != nil {
			return err
		}
		return m.AddMethodFromSingleAbstractImplementerRecord(method, thisClass, step.VftSlot, caller)

	case "add_stack_walker_may_skip_frames":
		method, err := e.method(step.Method)
		if err != nil {
			return err
		}
		methodClass, err := e.class(step.MethodClass)
		if err != nil {
			return err
		}
		return m.AddStackWalkerMaySkipFramesRecord(method, methodClass, step.SkipFrames)

	case "add_class_info_is_initialized":
		class, err := e.class(step.Class)
		if err != nil {
			return err
		}
		return m.AddClassInfoIsInitializedRecord(class, step.Initialized)

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}
