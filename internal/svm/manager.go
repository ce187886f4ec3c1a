// Package svm implements symbol validation sessions: the compile phase
// records the symbol facts a compilation relied on, and the load phase
// replays them against the current runtime before a stored compilation
// is trusted.
//
// Symbols are named by dense uint16 IDs minted in record order, so a
// record stream is self-describing: replaying it front to back binds
// every ID before a later record references it. The compilee method
// and its defining class carry guaranteed IDs in every session.
package svm

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/ibmruntimes/aotverify/internal/facts"
	"github.com/ibmruntimes/aotverify/internal/rtenv"
)

// Config controls session behavior.
type Config struct {
	// AssertionsFatal makes logic failures panic instead of returning
	// an error. Environmental failures (unresolvable symbols, fact
	// mismatches, ID exhaustion) never panic.
	AssertionsFatal bool

	// Logger receives per-record trace events. Nil means slog.Default.
	Logger *slog.Logger
}

// Manager is one validation session. A compile session accumulates
// records through the Add entry points; a load session consumes them
// through the Validate entry points. Sessions are single-goroutine.
type Manager struct {
	env rtenv.Env
	log *slog.Logger

	assertionsFatal bool

	classIDs  map[facts.ClassRef]facts.ID
	methodIDs map[facts.MethodRef]facts.ID
	idSymbols []symbol // indexed by ID-1; zero symbol = unbound

	// seenClasses and seenMethods track every symbol a record touched,
	// independent of ID assignment. A symbol can be seen without an ID
	// when it was observed only incidentally, like an array type walked
	// through on the way to its leaf component.
	seenClasses map[facts.ClassRef]struct{}
	seenMethods map[facts.MethodRef]struct{}

	// compileeClass holds the guaranteed ID with no defining record, so
	// the derivation consistency check does not apply to it.
	compileeClass facts.ClassRef

	// records holds the stream in generation order, the order replay
	// must follow so every witness ID is bound before a later record
	// references it. dedup is the same set sorted under facts.Less.
	records []facts.Record
	dedup   []facts.Record

	heuristicDepth int
}

type symbol struct {
	isMethod bool
	class    facts.ClassRef
	method   facts.MethodRef
}

func (s symbol) bound() bool { return s.class != 0 || s.method != 0 }

func newManager(env rtenv.Env, cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		env:             env,
		log:             log,
		assertionsFatal: cfg.AssertionsFatal,
		classIDs:        make(map[facts.ClassRef]facts.ID),
		methodIDs:       make(map[facts.MethodRef]facts.ID),
		seenClasses:     make(map[facts.ClassRef]struct{}),
		seenMethods:     make(map[facts.MethodRef]struct{}),
	}
}

// NewCompileSession starts a compile-phase session for compilee. The
// compilee's defining class and the compilee itself receive the
// guaranteed IDs before any record is added.
func NewCompileSession(env rtenv.Env, compilee facts.MethodRef, cfg Config) (*Manager, error) {
	m := newManager(env, cfg)
	class := env.DefiningClassOfMethod(compilee)
	if compilee == 0 || class == 0 {
		return nil, newMissingSymbolError("new compile session", "compilee method is unresolvable")
	}
	m.compileeClass = class
	if _, err := m.mintClassID("new compile session", class); err != nil {
		return nil, err
	}
	if _, err := m.mintMethodID("new compile session", compilee); err != nil {
		return nil, err
	}
	return m, nil
}

// NewLoadSession starts a load-phase session for the same compilee,
// re-resolved in the loading runtime. The guaranteed IDs are bound to
// the load-side handles so replay starts from the same anchor the
// compile session did.
func NewLoadSession(env rtenv.Env, compilee facts.MethodRef, cfg Config) (*Manager, error) {
	m := newManager(env, cfg)
	class := env.DefiningClassOfMethod(compilee)
	if compilee == 0 || class == 0 {
		return nil, newMissingSymbolError("new load session", "compilee method is unresolvable")
	}
	m.compileeClass = class
	if _, err := m.mintClassID("new load session", class); err != nil {
		return nil, err
	}
	if _, err := m.mintMethodID("new load session", compilee); err != nil {
		return nil, err
	}
	return m, nil
}

// Records returns the accumulated records in generation order.
func (m *Manager) Records() []facts.Record {
	out := make([]facts.Record, len(m.records))
	copy(out, m.records)
	return out
}

// ClassID returns the ID assigned to a class, if any.
func (m *Manager) ClassID(c facts.ClassRef) (facts.ID, bool) {
	id, ok := m.classIDs[c]
	return id, ok
}

// MethodID returns the ID assigned to a method, if any.
func (m *Manager) MethodID(mr facts.MethodRef) (facts.ID, bool) {
	id, ok := m.methodIDs[mr]
	return id, ok
}

// ClassOfID returns the class bound to an ID, if any.
func (m *Manager) ClassOfID(id facts.ID) (facts.ClassRef, bool) {
	s, ok := m.symbolOf(id)
	if !ok || s.isMethod {
		return 0, false
	}
	return s.class, true
}

// MethodOfID returns the method bound to an ID, if any.
func (m *Manager) MethodOfID(id facts.ID) (facts.MethodRef, bool) {
	s, ok := m.symbolOf(id)
	if !ok || !s.isMethod {
		return 0, false
	}
	return s.method, true
}

func (m *Manager) symbolOf(id facts.ID) (symbol, bool) {
	if id == facts.NoID || int(id) > len(m.idSymbols) {
		return symbol{}, false
	}
	s := m.idSymbols[id-1]
	return s, s.bound()
}

// EnterHeuristicRegion suspends record persistence. Regions nest;
// while any region is open every symbol reads as already validated and
// Add entry points succeed without recording anything.
func (m *Manager) EnterHeuristicRegion() {
	m.heuristicDepth++
}

// ExitHeuristicRegion closes the innermost region. Exiting with no
// open region is a logic failure.
func (m *Manager) ExitHeuristicRegion() error {
	if m.heuristicDepth == 0 {
		return m.logicErr("exit heuristic region", "no heuristic region is open")
	}
	m.heuristicDepth--
	return nil
}

// InHeuristicRegion reports whether a heuristic region is open.
func (m *Manager) InHeuristicRegion() bool {
	return m.heuristicDepth > 0
}

// WithHeuristicRegion runs f inside a heuristic region. The region
// closes when f returns, on the error path included, so callers cannot
// leave a region open by returning early.
func (m *Manager) WithHeuristicRegion(f func() error) error {
	m.EnterHeuristicRegion()
	defer func() {
		_ = m.ExitHeuristicRegion()
	}()
	return f()
}

// ClassIsValidated reports whether c already carries an ID. Inside a
// heuristic region every class reads as validated.
func (m *Manager) ClassIsValidated(c facts.ClassRef) bool {
	if m.heuristicDepth > 0 {
		return true
	}
	_, ok := m.classIDs[c]
	return ok
}

// MethodIsValidated is the method counterpart of ClassIsValidated.
func (m *Manager) MethodIsValidated(mr facts.MethodRef) bool {
	if m.heuristicDepth > 0 {
		return true
	}
	_, ok := m.methodIDs[mr]
	return ok
}

// ClassIsSeen reports whether any record touched c, as subject,
// witness, or an array dimension walked through during unrolling. A
// seen class does not necessarily carry an ID.
func (m *Manager) ClassIsSeen(c facts.ClassRef) bool {
	_, ok := m.seenClasses[c]
	return ok
}

// MethodIsSeen is the method counterpart of ClassIsSeen.
func (m *Manager) MethodIsSeen(mr facts.MethodRef) bool {
	_, ok := m.seenMethods[mr]
	return ok
}

func (m *Manager) logicErr(op string, format string, args ...any) error {
	err := &Error{
		Code:    ErrCodeLogicFailure,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
	if m.assertionsFatal {
		panic(err)
	}
	return err
}

func (m *Manager) recordLogicErr(op string, r facts.Record, format string, args ...any) error {
	err := &Error{
		Code:    ErrCodeLogicFailure,
		Op:      op,
		Record:  facts.Format(r),
		Message: fmt.Sprintf(format, args...),
	}
	if m.assertionsFatal {
		panic(err)
	}
	return err
}

// mintClassID assigns the next free ID to c, or returns the one it
// already has.
func (m *Manager) mintClassID(op string, c facts.ClassRef) (facts.ID, error) {
	m.seenClasses[c] = struct{}{}
	if id, ok := m.classIDs[c]; ok {
		return id, nil
	}
	id, err := m.nextID(op)
	if err != nil {
		return facts.NoID, err
	}
	m.classIDs[c] = id
	m.idSymbols[id-1] = symbol{class: c}
	return id, nil
}

func (m *Manager) mintMethodID(op string, mr facts.MethodRef) (facts.ID, error) {
	m.seenMethods[mr] = struct{}{}
	if id, ok := m.methodIDs[mr]; ok {
		return id, nil
	}
	id, err := m.nextID(op)
	if err != nil {
		return facts.NoID, err
	}
	m.methodIDs[mr] = id
	m.idSymbols[id-1] = symbol{isMethod: true, method: mr}
	return id, nil
}

func (m *Manager) nextID(op string) (facts.ID, error) {
	if len(m.idSymbols) >= int(facts.MaxID) {
		return facts.NoID, newLimitError(op)
	}
	m.idSymbols = append(m.idSymbols, symbol{})
	return facts.ID(len(m.idSymbols)), nil
}

// insertRecord appends r to the stream unless an equal record was
// already generated. Dedup runs against the sorted set so equality is
// decided by the record total order, not by interface identity.
func (m *Manager) insertRecord(r facts.Record) bool {
	i := sort.Search(len(m.dedup), func(i int) bool {
		return !facts.Less(m.dedup[i], r)
	})
	if i < len(m.dedup) && facts.Equal(m.dedup[i], r) {
		return false
	}
	m.dedup = append(m.dedup, nil)
	copy(m.dedup[i+1:], m.dedup[i:])
	m.dedup[i] = r
	m.records = append(m.records, r)
	return true
}

// HasRecord reports whether an equal record is already in the stream.
func (m *Manager) HasRecord(r facts.Record) bool {
	i := sort.Search(len(m.dedup), func(i int) bool {
		return !facts.Less(m.dedup[i], r)
	})
	return i < len(m.dedup) && facts.Equal(m.dedup[i], r)
}

// witnessClass asserts that a class referenced by a new record was
// validated by an earlier one. A witness that was seen but never given
// an ID is called out separately: the caller observed it incidentally
// and skipped the record that would have validated it.
func (m *Manager) witnessClass(op string, r facts.Record, role string, c facts.ClassRef) error {
	if m.ClassIsValidated(c) {
		m.seenClasses[c] = struct{}{}
		return nil
	}
	if m.ClassIsSeen(c) {
		return m.recordLogicErr(op, r, "%s class %d was seen but never validated", role, c)
	}
	return m.recordLogicErr(op, r, "%s class %d has no ID yet", role, c)
}

func (m *Manager) witnessMethod(op string, r facts.Record, role string, mr facts.MethodRef) error {
	if m.MethodIsValidated(mr) {
		m.seenMethods[mr] = struct{}{}
		return nil
	}
	if m.MethodIsSeen(mr) {
		return m.recordLogicErr(op, r, "%s method %d was seen but never validated", role, mr)
	}
	return m.recordLogicErr(op, r, "%s method %d has no ID yet", role, mr)
}

// resolveClassID resolves a witness ID bound by an earlier record in
// the stream. An unbound ID fails the load as a missing symbol: the
// record that should have bound it did not validate, so the artifact
// cannot be trusted, but the process is healthy.
func (m *Manager) resolveClassID(op string, id facts.ID) (facts.ClassRef, error) {
	c, ok := m.ClassOfID(id)
	if !ok {
		return 0, newMissingSymbolError(op, "class ID %d is not bound", id)
	}
	return c, nil
}

func (m *Manager) resolveMethodID(op string, id facts.ID) (facts.MethodRef, error) {
	mr, ok := m.MethodOfID(id)
	if !ok {
		return 0, newMissingSymbolError(op, "method ID %d is not bound", id)
	}
	return mr, nil
}

// bindClass binds id to the re-derived class c, or confirms an earlier
// binding. Re-deriving a different class than a previous record did is
// a mismatch, not a logic failure: the loading runtime disagrees with
// the recorded world.
func (m *Manager) bindClass(op string, id facts.ID, c facts.ClassRef) error {
	if c == 0 {
		return newMissingSymbolError(op, "class for ID %d did not resolve", id)
	}
	if id == facts.NoID {
		return m.logicErr(op, "cannot bind the null ID")
	}
	for int(id) > len(m.idSymbols) {
		m.idSymbols = append(m.idSymbols, symbol{})
	}
	prev := m.idSymbols[id-1]
	if prev.bound() {
		if prev.isMethod {
			return m.logicErr(op, "ID %d is bound to a method, expected a class", id)
		}
		if prev.class != c {
			return newMismatchError(op, "ID %d re-derived as class %d, previously %d", id, c, prev.class)
		}
		return nil
	}
	m.idSymbols[id-1] = symbol{class: c}
	m.classIDs[c] = id
	m.seenClasses[c] = struct{}{}
	m.log.Debug("class bound", "id", id, "class", m.env.ClassName(c))
	return nil
}

func (m *Manager) bindMethod(op string, id facts.ID, mr facts.MethodRef) error {
	if mr == 0 {
		return newMissingSymbolError(op, "method for ID %d did not resolve", id)
	}
	if id == facts.NoID {
		return m.logicErr(op, "cannot bind the null ID")
	}
	for int(id) > len(m.idSymbols) {
		m.idSymbols = append(m.idSymbols, symbol{})
	}
	prev := m.idSymbols[id-1]
	if prev.bound() {
		if !prev.isMethod {
			return m.logicErr(op, "ID %d is bound to a class, expected a method", id)
		}
		if prev.method != mr {
			return newMismatchError(op, "ID %d re-derived as method %d, previously %d", id, mr, prev.method)
		}
		return nil
	}
	m.idSymbols[id-1] = symbol{isMethod: true, method: mr}
	m.methodIDs[mr] = id
	m.seenMethods[mr] = struct{}{}
	name, sig := m.env.MethodName(mr)
	m.log.Debug("method bound", "id", id, "method", name+sig)
	return nil
}
