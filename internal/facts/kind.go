package facts

// Kind enumerates the closed set of validation-record kinds.
//
// The numeric order of kinds is the major key of the record total order
// and is part of the persisted format. Append new kinds at the end;
// never reorder.
type Kind uint8

const (
	KindClassByName Kind = iota
	KindProfiledClass
	KindClassFromCP
	KindDefiningClassFromCP
	KindStaticClassFromCP
	KindClassFromMethod
	KindComponentClassFromArrayClass
	KindArrayClassFromComponentClass
	KindSuperClassFromClass
	KindClassInstanceOfClass
	KindSystemClassByName
	KindClassFromITableIndexCP
	KindDeclaringClassFromFieldOrStatic
	KindClassClass
	KindConcreteSubClassFromClass
	KindClassChain
	KindMethodFromClass
	KindStaticMethodFromCP
	KindSpecialMethodFromCP
	KindVirtualMethodFromCP
	KindVirtualMethodFromOffset
	KindInterfaceMethodFromCP
	KindImproperInterfaceMethodFromCP
	KindMethodFromClassAndSig
	KindMethodFromSingleImplementer
	KindMethodFromSingleInterfaceImplementer
	KindMethodFromSingleAbstractImplementer
	KindStackWalkerMaySkipFrames
	KindClassInfoIsInitialized

	numKinds
)

var kindNames = [numKinds]string{
	KindClassByName:                          "class_by_name",
	KindProfiledClass:                        "profiled_class",
	KindClassFromCP:                          "class_from_cp",
	KindDefiningClassFromCP:                  "defining_class_from_cp",
	KindStaticClassFromCP:                    "static_class_from_cp",
	KindClassFromMethod:                      "class_from_method",
	KindComponentClassFromArrayClass:         "component_class_from_array_class",
	KindArrayClassFromComponentClass:         "array_class_from_component_class",
	KindSuperClassFromClass:                  "super_class_from_class",
	KindClassInstanceOfClass:                 "class_instance_of_class",
	KindSystemClassByName:                    "system_class_by_name",
	KindClassFromITableIndexCP:               "class_from_itable_index_cp",
	KindDeclaringClassFromFieldOrStatic:      "declaring_class_from_field_or_static",
	KindClassClass:                           "class_class",
	KindConcreteSubClassFromClass:            "concrete_sub_class_from_class",
	KindClassChain:                           "class_chain",
	KindMethodFromClass:                      "method_from_class",
	KindStaticMethodFromCP:                   "static_method_from_cp",
	KindSpecialMethodFromCP:                  "special_method_from_cp",
	KindVirtualMethodFromCP:                  "virtual_method_from_cp",
	KindVirtualMethodFromOffset:              "virtual_method_from_offset",
	KindInterfaceMethodFromCP:                "interface_method_from_cp",
	KindImproperInterfaceMethodFromCP:        "improper_interface_method_from_cp",
	KindMethodFromClassAndSig:                "method_from_class_and_sig",
	KindMethodFromSingleImplementer:          "method_from_single_implementer",
	KindMethodFromSingleInterfaceImplementer: "method_from_single_interface_implementer",
	KindMethodFromSingleAbstractImplementer:  "method_from_single_abstract_implementer",
	KindStackWalkerMaySkipFrames:             "stack_walker_may_skip_frames",
	KindClassInfoIsInitialized:               "class_info_is_initialized",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "unknown_kind"
}

// KindFromName resolves a wire-format kind name. Returns false for names
// this build does not know, which callers treat as a load failure.
func KindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}
