package ruleset

import (
	"sync"

	"github.com/cx-luo/tautenum/chem"
)

// CompiledSet is the per-worker materialization of a RuleSet's appliers.
// Appliers carry per-call mutable toolkit state and must never be shared
// across goroutines (spec.md §5); every worker builds its own CompiledSet
// over the same, immutable, shared *RuleSet.
type CompiledSet struct {
	rs      *RuleSet
	toolkit chem.Toolkit

	mu       sync.Mutex
	appliers []chem.RuleApplier // lazily populated, one slot per rs.Rules[i]
}

// NewCompiledSet wraps rs for compilation against toolkit. rs is read-only
// from this point on; NewCompiledSet does not copy it.
func NewCompiledSet(rs *RuleSet, toolkit chem.Toolkit) *CompiledSet {
	return &CompiledSet{
		rs:       rs,
		toolkit:  toolkit,
		appliers: make([]chem.RuleApplier, len(rs.Rules)),
	}
}

// Len returns the number of rules in the underlying RuleSet.
func (cs *CompiledSet) Len() int { return len(cs.rs.Rules) }

// Rule returns the i'th rule's metadata (name, patterns) without compiling it.
func (cs *CompiledSet) Rule(i int) Rule { return cs.rs.Rules[i] }

// RuleSet returns the underlying immutable RuleSet.
func (cs *CompiledSet) RuleSet() *RuleSet { return cs.rs }

// Applier lazily compiles (and caches) rule i's applier. Not safe to call the
// returned applier concurrently from multiple goroutines — CompiledSet itself
// must not be shared across workers, only the underlying *RuleSet may be.
func (cs *CompiledSet) Applier(i int) (chem.RuleApplier, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.appliers[i] != nil {
		return cs.appliers[i], nil
	}
	rule := cs.rs.Rules[i]
	applier, err := cs.toolkit.CompileRule(rule.ExpandedPattern)
	if err != nil {
		return nil, &CompileError{Name: rule.Name, Expanded: rule.ExpandedPattern, Err: err}
	}
	cs.appliers[i] = applier
	return applier, nil
}
