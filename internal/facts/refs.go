package facts

// ClassRef is an opaque handle to a runtime class. Handles are owned by
// the runtime metadata provider; this engine only references them and
// compares them by identity. The zero value means "no class".
type ClassRef uint32

// MethodRef is an opaque handle to a runtime method. Zero means "no method".
type MethodRef uint32

// ConstPoolRef is an opaque handle to a class's constant pool.
type ConstPoolRef uint32

// ChainRef is an opaque identifier for a class chain: a persistent
// fingerprint asserting "same class shape as previously seen under this
// loader". Chains survive across runs, unlike ClassRef handles.
type ChainRef uint32

// LoaderRef is an opaque handle to a class loader.
type LoaderRef uint32

// ID is a compact symbol identifier, unique per symbol within one
// validation session. IDs are the currency of the persisted record
// stream: wire records reference symbols only by ID.
type ID uint16

const (
	// NoID means "no ID assigned".
	NoID ID = 0

	// FirstID is the first ID minted in a session.
	FirstID ID = 1

	// MaxID bounds the ID space. Exceeding it fails the session
	// (non-fatal: the compilation is abandoned, never the process).
	MaxID ID = 0xFFFF
)

// YesNoMaybe is the tri-state used by interface-dispatch facts.
type YesNoMaybe int8

const (
	No YesNoMaybe = iota
	Yes
	Maybe
)

func (y YesNoMaybe) String() string {
	switch y {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "maybe"
	}
}
