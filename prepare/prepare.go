// Package prepare puts an incoming molecule into the canonical starting
// state every Transformation Engine operation assumes: chirality perceived,
// aromaticity assigned, and structure round-tripped through canonical SMILES
// so that otherwise-ambiguous rule outputs come out consistently. Grounded on
// original_source/src/canned_tautenum_routines.cc's prepare_molecule.
package prepare

import (
	"fmt"

	"github.com/cx-luo/tautenum/chem"
)

// Molecule perceives chirality, assigns Daylight-model aromaticity, and
// returns the canonical-SMILES round-trip of mol with its title preserved.
// The caller owns mol's lifetime (Close it when done with it, same as before
// calling Molecule); the returned Molecule is a distinct handle the caller
// must also Close. Molecule is idempotent: preparing its own output again
// reproduces the same canonical form.
func Molecule(mol chem.Molecule, toolkit chem.Toolkit) (chem.Molecule, error) {
	if err := mol.PerceiveChirality(); err != nil {
		return nil, fmt.Errorf("prepare: perceive chirality: %w", err)
	}
	if err := mol.AssignAromaticity(chem.AromaticityDaylight); err != nil {
		return nil, fmt.Errorf("prepare: assign aromaticity: %w", err)
	}

	title := mol.Title()
	canSMI, err := mol.CanonicalSMILES(chem.SMILESOptions{
		Isomeric:   true,
		AtomStereo: true,
		BondStereo: true,
	})
	if err != nil {
		return nil, fmt.Errorf("prepare: canonical smiles: %w", err)
	}

	prepared, err := toolkit.ParseSMILES(canSMI)
	if err != nil {
		return nil, fmt.Errorf("prepare: reparse canonical smiles %q: %w", canSMI, err)
	}
	prepared.SetTitle(title)
	return prepared, nil
}
