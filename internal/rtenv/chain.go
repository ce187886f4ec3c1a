package rtenv

import (
	"strings"

	"github.com/ibmruntimes/aotverify/internal/facts"
)

// ChainTable interns class chains: persistent fingerprints that outlive
// any one runtime snapshot, the way shared-cache chains outlive a JVM.
// A compile-phase snapshot and a load-phase snapshot share one table so
// that chain identifiers recorded during compilation stay meaningful at
// load time even though every ClassRef differs.
type ChainTable struct {
	entries []chainEntry // 1-based; index 0 unused (zero ChainRef = none)
	index   map[string]facts.ChainRef
}

type chainEntry struct {
	className  string
	loaderName string
	// names holds the class name followed by its superclass names,
	// innermost first. Matching a chain means the live class walks the
	// same names in the same order.
	names []string
}

func NewChainTable() *ChainTable {
	return &ChainTable{index: make(map[string]facts.ChainRef)}
}

// Intern returns the chain for the given identity, creating it on first
// use. Chains with identical content share one ChainRef.
func (t *ChainTable) Intern(className, loaderName string, names []string) facts.ChainRef {
	key := loaderName + "\x00" + className + "\x00" + strings.Join(names, "\x00")
	if ref, ok := t.index[key]; ok {
		return ref
	}
	t.entries = append(t.entries, chainEntry{
		className:  className,
		loaderName: loaderName,
		names:      append([]string(nil), names...),
	})
	ref := facts.ChainRef(len(t.entries))
	t.index[key] = ref
	return ref
}

func (t *ChainTable) lookup(ref facts.ChainRef) (chainEntry, bool) {
	if ref == 0 || int(ref) > len(t.entries) {
		return chainEntry{}, false
	}
	return t.entries[ref-1], true
}
