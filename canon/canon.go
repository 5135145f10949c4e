// Package canon is the sole equality/dedup oracle the engine uses: two
// molecules are the same tautomer or protonation state if and only if their
// canonical SMILES strings are equal. Grounded on original_source's use of
// OECreateSmiString with the Canonical|AtomStereo|BondStereo flag
// combination throughout TautStand.cc and TautEnum.cc.
package canon

import (
	"fmt"
	"sort"

	"github.com/cx-luo/tautenum/chem"
)

// opts is fixed: every caller gets the same canonical form, because
// comparing SMILES produced with different flavor flags is meaningless.
var opts = chem.SMILESOptions{
	Isomeric:   true,
	AtomStereo: true,
	BondStereo: true,
}

// Canonical returns mol's canonical SMILES using the one flag combination
// this package ever produces.
func Canonical(mol chem.Molecule) (string, error) {
	smi, err := mol.CanonicalSMILES(opts)
	if err != nil {
		return "", fmt.Errorf("canon: %w", err)
	}
	return smi, nil
}

// Equal reports whether a and b are the same structure by canonical SMILES.
func Equal(a, b chem.Molecule) (bool, error) {
	sa, err := Canonical(a)
	if err != nil {
		return false, err
	}
	sb, err := Canonical(b)
	if err != nil {
		return false, err
	}
	return sa == sb, nil
}

// SortBySMILES stably sorts mols by canonical SMILES descending, the final
// ordering step every orchestrated run applies so output is deterministic
// regardless of the (unordered) rule-application order that produced it.
func SortBySMILES(mols []chem.Molecule) ([]chem.Molecule, error) {
	keyed := make([]struct {
		mol chem.Molecule
		key string
	}, len(mols))
	for i, m := range mols {
		key, err := Canonical(m)
		if err != nil {
			return nil, err
		}
		keyed[i].mol = m
		keyed[i].key = key
	}
	sort.SliceStable(keyed, func(i, j int) bool { return keyed[i].key > keyed[j].key })

	out := make([]chem.Molecule, len(mols))
	for i, k := range keyed {
		out[i] = k.mol
	}
	return out, nil
}

// Dedup removes molecules whose canonical SMILES has already been seen,
// preserving first-occurrence order. seen is consulted and updated in place
// so a caller can run Dedup incrementally across successive batches.
func Dedup(mols []chem.Molecule, seen map[string]struct{}) ([]chem.Molecule, error) {
	if seen == nil {
		seen = make(map[string]struct{}, len(mols))
	}
	out := make([]chem.Molecule, 0, len(mols))
	for _, m := range mols {
		key, err := Canonical(m)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}
