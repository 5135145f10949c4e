// Package engine is the transformation engine: the fixed-point graph-rewrite
// loop that standardizes a molecule to one canonical tautomer/protonation
// state, or enumerates every reachable state as a breadth-first closure.
// Grounded on original_source/src/TautStand.cc (Standardize) and
// original_source/src/TautEnum.cc (Enumerate).
package engine

import (
	"fmt"

	"github.com/cx-luo/tautenum/canon"
	"github.com/cx-luo/tautenum/chem"
	"github.com/cx-luo/tautenum/radical"
	"github.com/cx-luo/tautenum/ruleset"
)

// Logger is the minimal diagnostic sink Standardize/Enumerate use for
// verbose per-rule audit lines (spec.md §4.7's verbose option, §7's
// "radical-introducing product ... logged in verbose mode"). A nil Logger
// in Config disables audit logging entirely.
type Logger interface {
	Debugf(format string, args ...any)
}

// Config controls the behaviors both Standardize and Enumerate share.
type Config struct {
	// StripSalts removes disconnected salt fragments from each product,
	// standardization-only (TautStand::standardise's strip_salts flag).
	StripSalts bool
	// AddRuleNameToTitle appends the firing rule's name to a product's
	// title, space-separated, once per rule application.
	AddRuleNameToTitle bool
	// MaxOutputMolecules bounds Enumerate's result size; zero means
	// unbounded. Standardize ignores this field.
	MaxOutputMolecules int
	// Log, if non-nil, receives one audit line per rule application and
	// per radical-guard rejection.
	Log Logger
}

func (c Config) debugf(format string, args ...any) {
	if c.Log != nil {
		c.Log.Debugf(format, args...)
	}
}

// TautomerSet is the ordered, deduplicated result of Enumerate: it always
// contains the input molecule, and its Molecules are sorted by canonical
// SMILES descending, so the input is not necessarily at index 0.
type TautomerSet struct {
	Molecules []chem.Molecule
}

// StandardizeResult is Standardize's outcome. CycleDetected is set when any
// rule, on any sweep, revisited a canonical SMILES it had already produced;
// that rule's inner loop is abandoned at the point of the cycle (the
// cycling product is discarded, never committed to product/seen), but the
// remaining rules in the sweep and subsequent sweeps still run to their own
// fixed point. Molecule is therefore the final converged product, not
// merely "the last product before the cycle closed" in isolation.
type StandardizeResult struct {
	Molecule      chem.Molecule
	CycleDetected bool
}

// TooManyOutputsError reports that Enumerate exceeded cfg.MaxOutputMolecules.
// Its partial TautomerSet is discarded; InputTitle names the offending input
// for the caller's diagnostics.
type TooManyOutputsError struct {
	InputTitle string
	Limit      int
}

func (e *TooManyOutputsError) Error() string {
	return fmt.Sprintf("engine: %q produced more than %d tautomers", e.InputTitle, e.Limit)
}

// Standardize repeatedly applies compiled's rules, in order, until no rule
// changes the canonical SMILES of the working molecule. Each pass over the
// rule list is itself repeated per-rule until that rule stops matching
// (TautStand's "while SetStartingMaterial matches" inner loop) before moving
// to the next rule; the outer loop repeats the whole rule list until a full
// pass adds no new canonical SMILES to the seen set.
func Standardize(mol chem.Molecule, compiled *ruleset.CompiledSet, cfg Config) (StandardizeResult, error) {
	product := mol
	seen := map[string]struct{}{}
	startSMI, err := canon.Canonical(product)
	if err != nil {
		return StandardizeResult{}, err
	}
	seen[startSMI] = struct{}{}

	var cycleDetected bool

	for {
		sizeBefore := len(seen)

		for i := 0; i < compiled.Len(); i++ {
			applier, err := compiled.Applier(i)
			if err != nil {
				return StandardizeResult{}, err
			}
			applier.SetAssignMapIdx(false)

			for {
				matches, err := applier.SetSource(product)
				if err != nil {
					return StandardizeResult{}, err
				}
				if matches == 0 {
					break
				}

				nextProduct, ok := applier.Products().Next()
				if !ok {
					break
				}

				if cfg.StripSalts {
					if err := nextProduct.StripSalts(); err != nil {
						return StandardizeResult{}, err
					}
				}
				if err := nextProduct.FindRingsAndBonds(); err != nil {
					return StandardizeResult{}, err
				}
				if err := nextProduct.AssignAromaticity(chem.AromaticityDaylight); err != nil {
					return StandardizeResult{}, err
				}
				if err := nextProduct.PerceiveChirality(); err != nil {
					return StandardizeResult{}, err
				}

				smi, err := canon.Canonical(nextProduct)
				if err != nil {
					return StandardizeResult{}, err
				}

				if _, already := seen[smi]; already {
					// This rule cycles back to an already-seen canonical
					// form: bail out of *this rule's* inner loop only
					// (spec.md's "break  # loop detected, bail out of this
					// rule"), leaving product/seen untouched, and let the
					// outer "for each rule in order" sweep continue on to
					// the remaining rules.
					cycleDetected = true
					nextProduct.Close()
					break
				}

				if cfg.AddRuleNameToTitle {
					nextProduct.SetTitle(nextProduct.Title() + " " + compiled.Rule(i).Name)
				}

				seen[smi] = struct{}{}
				product = nextProduct
				cfg.debugf("standardize: rule %q matched %d time(s), product %s", compiled.Rule(i).Name, matches, smi)
			}
		}

		if len(seen) == sizeBefore {
			break
		}
	}

	return StandardizeResult{Molecule: product, CycleDetected: cycleDetected}, nil
}

// Enumerate performs a breadth-first closure over compiled's rules starting
// from mol, returning every distinct (by canonical SMILES) reachable
// molecule. Only molecules added in the previous round are re-matched each
// round (the frontier discipline TautEnum::enumerate relies on to avoid
// redundant rework), products introducing new radicals are discarded, and
// RemoveAlteredStereochem repairs atom stereo invalidated by a rule's
// rewrite. mol itself is always part of the result; the returned set is
// sorted by canonical SMILES descending, so mol's position in it follows
// from that order rather than being fixed at element 0.
func Enumerate(mol chem.Molecule, compiled *ruleset.CompiledSet, cfg Config) (TautomerSet, error) {
	det := radical.NewDetector()
	inputRadicals := det.Count(mol)

	seen := map[string]struct{}{}
	startSMI, err := canon.Canonical(mol)
	if err != nil {
		return TautomerSet{}, err
	}
	seen[startSMI] = struct{}{}

	results := []chem.Molecule{mol}
	frontierStart := 0

	for {
		frontierEnd := len(results)

		for i := frontierStart; i < frontierEnd; i++ {
			source := results[i]

			for ruleIdx := 0; ruleIdx < compiled.Len(); ruleIdx++ {
				applier, err := compiled.Applier(ruleIdx)
				if err != nil {
					return TautomerSet{}, err
				}
				applier.SetAssignMapIdx(true)
				applier.SetValidateKekule(false)

				if _, err := applier.SetSource(source); err != nil {
					return TautomerSet{}, err
				}

				iter := applier.Products()
				for {
					candidate, ok := iter.Next()
					if !ok {
						break
					}

					if err := candidate.FindRingsAndBonds(); err != nil {
						return TautomerSet{}, err
					}
					if err := candidate.AssignAromaticity(chem.AromaticityDaylight); err != nil {
						return TautomerSet{}, err
					}
					if err := candidate.PerceiveChirality(); err != nil {
						return TautomerSet{}, err
					}

					if det.Count(candidate) > inputRadicals {
						cfg.debugf("enumerate: rule %q rejected, product introduces a new radical", compiled.Rule(ruleIdx).Name)
						candidate.Close()
						continue
					}

					if err := RemoveAlteredStereochem(applier, candidate); err != nil {
						return TautomerSet{}, err
					}

					smi, err := canon.Canonical(candidate)
					if err != nil {
						return TautomerSet{}, err
					}
					if _, already := seen[smi]; already {
						candidate.Close()
						continue
					}

					if cfg.AddRuleNameToTitle {
						candidate.SetTitle(candidate.Title() + " " + compiled.Rule(ruleIdx).Name)
					}

					seen[smi] = struct{}{}
					results = append(results, candidate)
					cfg.debugf("enumerate: rule %q produced new tautomer %s", compiled.Rule(ruleIdx).Name, smi)

					if cfg.MaxOutputMolecules > 0 && len(results) > cfg.MaxOutputMolecules {
						// The partial set is discarded (spec.md §3's
						// TautomerSet invariant), but every product Enumerate
						// itself accumulated here is a live toolkit handle;
						// close them before returning, same as the
						// radical-guard and already-seen discard paths above.
						// results[0] is mol, the caller's input molecule, not
						// ours to close: its lifetime is the caller's (the
						// orchestrator still needs it for its fallback path).
						for _, m := range results[1:] {
							m.Close()
						}
						return TautomerSet{}, &TooManyOutputsError{InputTitle: mol.Title(), Limit: cfg.MaxOutputMolecules}
					}
				}
			}
		}

		if len(results) == frontierEnd {
			break
		}
		frontierStart = frontierEnd
	}

	sorted, err := canon.SortBySMILES(results)
	if err != nil {
		return TautomerSet{}, err
	}
	return TautomerSet{Molecules: sorted}, nil
}

// RemoveAlteredStereochem compares, by SMIRKS atom-map index, every mapped
// atom in applier's most recent starting material against its counterpart
// in product. A mismatch in atomic number, degree, heavy degree, valence,
// hybridization, or total hydrogen count means the rule rewrote that atom's
// environment enough that any tetrahedral stereo descriptor it carried in
// the product is no longer trustworthy, so it is cleared. Bond (cis/trans)
// stereo is deliberately left untouched: empirically it was never found to
// need the same repair.
func RemoveAlteredStereochem(applier chem.RuleApplier, product chem.Molecule) error {
	for i := 0; i < applier.NumReactants(); i++ {
		sm, ok := applier.StartingMaterial(i)
		if !ok {
			continue
		}
		for _, reactantAtom := range sm.Atoms() {
			if reactantAtom.MapIndex() == 0 || !reactantAtom.HasStereoSpecified(chem.StereoTetra) {
				continue
			}
			productAtom, ok := product.AtomByMapIndex(reactantAtom.MapIndex())
			if !ok || !productAtom.HasStereoSpecified(chem.StereoTetra) {
				continue
			}
			if environmentChanged(reactantAtom, productAtom) {
				if err := productAtom.ClearStereo(chem.StereoTetra); err != nil {
					return fmt.Errorf("engine: clearing stereo: %w", err)
				}
			}
		}
	}
	return nil
}

func environmentChanged(a, b chem.Atom) bool {
	return a.AtomicNumber() != b.AtomicNumber() ||
		a.Degree() != b.Degree() ||
		a.HeavyDegree() != b.HeavyDegree() ||
		a.Valence() != b.Valence() ||
		a.Hybridization() != b.Hybridization() ||
		a.TotalHCount() != b.TotalHCount()
}
