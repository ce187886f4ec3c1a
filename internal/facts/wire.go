package facts

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire is the persisted form of a record. Wire records carry symbol IDs
// and witness parameters only, never raw handles, so a record stream is
// self-contained and portable across address spaces. Names and
// signatures appear where the load phase re-derives a symbol from them.
//
// The concrete types below mirror the validation entry points one to
// one; decoding an artifact yields the exact argument list its replay
// call needs.
type Wire interface {
	WireKind() Kind
	wireSealed()
}

type wireBase struct{}

func (wireBase) wireSealed() {}

type WireClassByName struct {
	wireBase
	ClassID    ID     `json:"class_id"`
	BeholderID ID     `json:"beholder_id"`
	ClassName  string `json:"class_name"`
}

func (WireClassByName) WireKind() Kind { return KindClassByName }

type WireProfiledClass struct {
	wireBase
	ClassID   ID       `json:"class_id"`
	ClassName string   `json:"class_name"`
	Chain     ChainRef `json:"chain"`
}

func (WireProfiledClass) WireKind() Kind { return KindProfiledClass }

type WireClassFromCP struct {
	wireBase
	ClassID    ID     `json:"class_id"`
	BeholderID ID     `json:"beholder_id"`
	CPIndex    uint32 `json:"cp_index"`
}

func (WireClassFromCP) WireKind() Kind { return KindClassFromCP }

type WireDefiningClassFromCP struct {
	wireBase
	ClassID    ID     `json:"class_id"`
	BeholderID ID     `json:"beholder_id"`
	CPIndex    uint32 `json:"cp_index"`
	IsStatic   bool   `json:"is_static"`
}

func (WireDefiningClassFromCP) WireKind() Kind { return KindDefiningClassFromCP }

type WireStaticClassFromCP struct {
	wireBase
	ClassID    ID     `json:"class_id"`
	BeholderID ID     `json:"beholder_id"`
	CPIndex    uint32 `json:"cp_index"`
}

func (WireStaticClassFromCP) WireKind() Kind { return KindStaticClassFromCP }

type WireClassFromMethod struct {
	wireBase
	ClassID  ID `json:"class_id"`
	MethodID ID `json:"method_id"`
}

func (WireClassFromMethod) WireKind() Kind { return KindClassFromMethod }

type WireComponentClassFromArrayClass struct {
	wireBase
	ComponentClassID ID `json:"component_class_id"`
	ArrayClassID     ID `json:"array_class_id"`
}

func (WireComponentClassFromArrayClass) WireKind() Kind { return KindComponentClassFromArrayClass }

type WireArrayClassFromComponentClass struct {
	wireBase
	ArrayClassID     ID `json:"array_class_id"`
	ComponentClassID ID `json:"component_class_id"`
}

func (WireArrayClassFromComponentClass) WireKind() Kind { return KindArrayClassFromComponentClass }

type WireSuperClassFromClass struct {
	wireBase
	SuperClassID ID `json:"super_class_id"`
	ChildClassID ID `json:"child_class_id"`
}

func (WireSuperClassFromClass) WireKind() Kind { return KindSuperClassFromClass }

type WireClassInstanceOfClass struct {
	wireBase
	ClassOneID        ID   `json:"class_one_id"`
	ClassTwoID        ID   `json:"class_two_id"`
	ObjectTypeIsFixed bool `json:"object_type_is_fixed"`
	CastTypeIsFixed   bool `json:"cast_type_is_fixed"`
	IsInstanceOf      bool `json:"is_instance_of"`
}

func (WireClassInstanceOfClass) WireKind() Kind { return KindClassInstanceOfClass }

type WireSystemClassByName struct {
	wireBase
	SystemClassID ID     `json:"system_class_id"`
	ClassName     string `json:"class_name"`
}

func (WireSystemClassByName) WireKind() Kind { return KindSystemClassByName }

type WireClassFromITableIndexCP struct {
	wireBase
	ClassID    ID    `json:"class_id"`
	BeholderID ID    `json:"beholder_id"`
	CPIndex    int32 `json:"cp_index"`
}

func (WireClassFromITableIndexCP) WireKind() Kind { return KindClassFromITableIndexCP }

type WireDeclaringClassFromFieldOrStatic struct {
	wireBase
	ClassID    ID    `json:"class_id"`
	BeholderID ID    `json:"beholder_id"`
	CPIndex    int32 `json:"cp_index"`
}

func (WireDeclaringClassFromFieldOrStatic) WireKind() Kind { return KindDeclaringClassFromFieldOrStatic }

type WireClassClass struct {
	wireBase
	ClassClassID  ID `json:"class_class_id"`
	ObjectClassID ID `json:"object_class_id"`
}

func (WireClassClass) WireKind() Kind { return KindClassClass }

type WireConcreteSubClassFromClass struct {
	wireBase
	ChildClassID ID `json:"child_class_id"`
	SuperClassID ID `json:"super_class_id"`
}

func (WireConcreteSubClassFromClass) WireKind() Kind { return KindConcreteSubClassFromClass }

type WireClassChain struct {
	wireBase
	ClassID ID       `json:"class_id"`
	Chain   ChainRef `json:"chain"`
}

func (WireClassChain) WireKind() Kind { return KindClassChain }

type WireMethodFromClass struct {
	wireBase
	MethodID   ID     `json:"method_id"`
	BeholderID ID     `json:"beholder_id"`
	Index      uint32 `json:"index"`
}

func (WireMethodFromClass) WireKind() Kind { return KindMethodFromClass }

type WireStaticMethodFromCP struct {
	wireBase
	MethodID   ID    `json:"method_id"`
	BeholderID ID    `json:"beholder_id"`
	CPIndex    int32 `json:"cp_index"`
}

func (WireStaticMethodFromCP) WireKind() Kind { return KindStaticMethodFromCP }

type WireSpecialMethodFromCP struct {
	wireBase
	MethodID   ID    `json:"method_id"`
	BeholderID ID    `json:"beholder_id"`
	CPIndex    int32 `json:"cp_index"`
}

func (WireSpecialMethodFromCP) WireKind() Kind { return KindSpecialMethodFromCP }

type WireVirtualMethodFromCP struct {
	wireBase
	MethodID   ID    `json:"method_id"`
	BeholderID ID    `json:"beholder_id"`
	CPIndex    int32 `json:"cp_index"`
}

func (WireVirtualMethodFromCP) WireKind() Kind { return KindVirtualMethodFromCP }

type WireVirtualMethodFromOffset struct {
	wireBase
	MethodID          ID    `json:"method_id"`
	BeholderID        ID    `json:"beholder_id"`
	VirtualCallOffset int32 `json:"virtual_call_offset"`
	IgnoreRtResolve   bool  `json:"ignore_rt_resolve"`
}

func (WireVirtualMethodFromOffset) WireKind() Kind { return KindVirtualMethodFromOffset }

type WireInterfaceMethodFromCP struct {
	wireBase
	MethodID   ID    `json:"method_id"`
	BeholderID ID    `json:"beholder_id"`
	LookupID   ID    `json:"lookup_id"`
	CPIndex    int32 `json:"cp_index"`
}

func (WireInterfaceMethodFromCP) WireKind() Kind { return KindInterfaceMethodFromCP }

type WireImproperInterfaceMethodFromCP struct {
	wireBase
	MethodID   ID    `json:"method_id"`
	BeholderID ID    `json:"beholder_id"`
	CPIndex    int32 `json:"cp_index"`
}

func (WireImproperInterfaceMethodFromCP) WireKind() Kind { return KindImproperInterfaceMethodFromCP }

type WireMethodFromClassAndSig struct {
	wireBase
	MethodID      ID     `json:"method_id"`
	MethodClassID ID     `json:"method_class_id"`
	BeholderID    ID     `json:"beholder_id"`
	MethodName    string `json:"method_name"`
	MethodSig     string `json:"method_sig"`
}

func (WireMethodFromClassAndSig) WireKind() Kind { return KindMethodFromClassAndSig }

type WireMethodFromSingleImplementer struct {
	wireBase
	MethodID                      ID         `json:"method_id"`
	ThisClassID                   ID         `json:"this_class_id"`
	CPIndexOrVftSlot              int32      `json:"cp_index_or_vft_slot"`
	CallerMethodID                ID         `json:"caller_method_id"`
	UseGetResolvedInterfaceMethod YesNoMaybe `json:"use_get_resolved_interface_method"`
}

func (WireMethodFromSingleImplementer) WireKind() Kind { return KindMethodFromSingleImplementer }

type WireMethodFromSingleInterfaceImplementer struct {
	wireBase
	MethodID       ID    `json:"method_id"`
	ThisClassID    ID    `json:"this_class_id"`
	CPIndex        int32 `json:"cp_index"`
	CallerMethodID ID    `json:"caller_method_id"`
}

func (WireMethodFromSingleInterfaceImplementer) WireKind() Kind {
	return KindMethodFromSingleInterfaceImplementer
}

type WireMethodFromSingleAbstractImplementer struct {
	wireBase
	MethodID       ID    `json:"method_id"`
	ThisClassID    ID    `json:"this_class_id"`
	VftSlot        int32 `json:"vft_slot"`
	CallerMethodID ID    `json:"caller_method_id"`
}

func (WireMethodFromSingleAbstractImplementer) WireKind() Kind {
	return KindMethodFromSingleAbstractImplementer
}

type WireStackWalkerMaySkipFrames struct {
	wireBase
	MethodID      ID   `json:"method_id"`
	MethodClassID ID   `json:"method_class_id"`
	SkipFrames    bool `json:"skip_frames"`
}

func (WireStackWalkerMaySkipFrames) WireKind() Kind { return KindStackWalkerMaySkipFrames }

type WireClassInfoIsInitialized struct {
	wireBase
	ClassID       ID   `json:"class_id"`
	IsInitialized bool `json:"is_initialized"`
}

func (WireClassInfoIsInitialized) WireKind() Kind { return KindClassInfoIsInitialized }

// EncodeWire serializes a wire record as canonical JSON with the kind
// name under the "kind" key. Two equal records produce byte-identical
// payloads.
func EncodeWire(w Wire) ([]byte, error) {
	plain, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", w.WireKind(), err)
	}
	dec := json.NewDecoder(bytes.NewReader(plain))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("encode %s: %w", w.WireKind(), err)
	}
	for k, v := range m {
		if n, ok := v.(json.Number); ok {
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("encode %s: field %s: %w", w.WireKind(), k, err)
			}
			m[k] = i
		}
	}
	m["kind"] = w.WireKind().String()
	return MarshalCanonical(m)
}

// DecodeWire parses a canonical wire payload back into its typed form.
// Unknown kinds fail: an artifact written by a newer build is not
// replayable by this one.
func DecodeWire(data []byte) (Wire, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode wire record: %w", err)
	}
	kind, ok := KindFromName(head.Kind)
	if !ok {
		return nil, fmt.Errorf("decode wire record: unknown kind %q", head.Kind)
	}

	w := newWire(kind)
	if err := json.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return deref(w), nil
}

// newWire returns a pointer to the zero wire struct for a kind.
func newWire(kind Kind) any {
	switch kind {
	case KindClassByName:
		return &WireClassByName{}
	case KindProfiledClass:
		return &WireProfiledClass{}
	case KindClassFromCP:
		return &WireClassFromCP{}
	case KindDefiningClassFromCP:
		return &WireDefiningClassFromCP{}
	case KindStaticClassFromCP:
		return &WireStaticClassFromCP{}
	case KindClassFromMethod:
		return &WireClassFromMethod{}
	case KindComponentClassFromArrayClass:
		return &WireComponentClassFromArrayClass{}
	case KindArrayClassFromComponentClass:
		return &WireArrayClassFromComponentClass{}
	case KindSuperClassFromClass:
		return &WireSuperClassFromClass{}
	case KindClassInstanceOfClass:
		return &WireClassInstanceOfClass{}
	case KindSystemClassByName:
		return &WireSystemClassByName{}
	case KindClassFromITableIndexCP:
		return &WireClassFromITableIndexCP{}
	case KindDeclaringClassFromFieldOrStatic:
		return &WireDeclaringClassFromFieldOrStatic{}
	case KindClassClass:
		return &WireClassClass{}
	case KindConcreteSubClassFromClass:
		return &WireConcreteSubClassFromClass{}
	case KindClassChain:
		return &WireClassChain{}
	case KindMethodFromClass:
		return &WireMethodFromClass{}
	case KindStaticMethodFromCP:
		return &WireStaticMethodFromCP{}
	case KindSpecialMethodFromCP:
		return &WireSpecialMethodFromCP{}
	case KindVirtualMethodFromCP:
		return &WireVirtualMethodFromCP{}
	case KindVirtualMethodFromOffset:
		return &WireVirtualMethodFromOffset{}
	case KindInterfaceMethodFromCP:
		return &WireInterfaceMethodFromCP{}
	case KindImproperInterfaceMethodFromCP:
		return &WireImproperInterfaceMethodFromCP{}
	case KindMethodFromClassAndSig:
		return &WireMethodFromClassAndSig{}
	case KindMethodFromSingleImplementer:
		return &WireMethodFromSingleImplementer{}
	case KindMethodFromSingleInterfaceImplementer:
		return &WireMethodFromSingleInterfaceImplementer{}
	case KindMethodFromSingleAbstractImplementer:
		return &WireMethodFromSingleAbstractImplementer{}
	case KindStackWalkerMaySkipFrames:
		return &WireStackWalkerMaySkipFrames{}
	case KindClassInfoIsInitialized:
		return &WireClassInfoIsInitialized{}
	default:
		return nil
	}
}

func deref(w any) Wire {
	switch v := w.(type) {
	case *WireClassByName:
		return *v
	case *WireProfiledClass:
		return *v
	case *WireClassFromCP:
		return *v
	case *WireDefiningClassFromCP:
		return *v
	case *WireStaticClassFromCP:
		return *v
	case *WireClassFromMethod:
		return *v
	case *WireComponentClassFromArrayClass:
		return *v
	case *WireArrayClassFromComponentClass:
		return *v
	case *WireSuperClassFromClass:
		return *v
	case *WireClassInstanceOfClass:
		return *v
	case *WireSystemClassByName:
		return *v
	case *WireClassFromITableIndexCP:
		return *v
	case *WireDeclaringClassFromFieldOrStatic:
		return *v
	case *WireClassClass:
		return *v
	case *WireConcreteSubClassFromClass:
		return *v
	case *WireClassChain:
		return *v
	case *WireMethodFromClass:
		return *v
	case *WireStaticMethodFromCP:
		return *v
	case *WireSpecialMethodFromCP:
		return *v
	case *WireVirtualMethodFromCP:
		return *v
	case *WireVirtualMethodFromOffset:
		return *v
	case *WireInterfaceMethodFromCP:
		return *v
	case *WireImproperInterfaceMethodFromCP:
		return *v
	case *WireMethodFromClassAndSig:
		return *v
	case *WireMethodFromSingleImplementer:
		return *v
	case *WireMethodFromSingleInterfaceImplementer:
		return *v
	case *WireMethodFromSingleAbstractImplementer:
		return *v
	case *WireStackWalkerMaySkipFrames:
		return *v
	case *WireClassInfoIsInitialized:
		return *v
	default:
		return nil
	}
}
