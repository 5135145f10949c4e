// Package radical flags atoms whose valence/formal-charge arithmetic cannot
// be satisfied by any permitted closed-shell electron count, the free-radical
// guard the Transformation Engine applies to every candidate product.
// Grounded on original_source/src/radical_atoms.cc.
package radical

import "github.com/cx-luo/tautenum/chem"

// shellCounts lists, per atomic number, the base electron count(s) a closed
// shell may be built from. Most elements have exactly one; P and S have two
// and three respectively, reflecting hypervalent closed-shell states.
var shellCounts = map[int][]int{
	6:  {4},    // C
	7:  {5},    // N
	8:  {6},    // O
	14: {4},    // Si
	15: {5, 3}, // P
	16: {6, 4, 2}, // S
}

// Detector checks atoms against the shell-count table above. It holds no
// per-call state and is safe to share across goroutines.
type Detector struct{}

// NewDetector returns a Detector for the fixed {C,N,O,Si,P,S} element set.
func NewDetector() Detector { return Detector{} }

// IsRadical reports whether atom is a free radical: its element is in the
// tracked set and none of its permitted base counts satisfies
// base + valence - formalCharge == 8.
func (Detector) IsRadical(atom chem.Atom) bool {
	bases, tracked := shellCounts[atom.AtomicNumber()]
	if !tracked {
		return false
	}
	for _, base := range bases {
		if base+atom.Valence()-atom.FormalCharge() == 8 {
			return false
		}
	}
	return true
}

// Atoms returns every radical atom in mol, in the order mol.Atoms() yields them.
func (d Detector) Atoms(mol chem.Molecule) []chem.Atom {
	var out []chem.Atom
	for _, a := range mol.Atoms() {
		if d.IsRadical(a) {
			out = append(out, a)
		}
	}
	return out
}

// Count returns the number of radical atoms in mol.
func (d Detector) Count(mol chem.Molecule) int {
	n := 0
	for _, a := range mol.Atoms() {
		if d.IsRadical(a) {
			n++
		}
	}
	return n
}
