package indigokit

/*
#cgo CFLAGS: -I${SRCDIR}/../../3rd

#cgo windows,amd64 LDFLAGS: -L${SRCDIR}/../../3rd/windows-x86_64 -lindigo
#cgo windows,386 LDFLAGS: -L${SRCDIR}/../../3rd/windows-i386 -lindigo
#cgo linux,amd64 LDFLAGS: -L${SRCDIR}/../../3rd/linux-x86_64 -lindigo -Wl,-rpath,${SRCDIR}/../../3rd/linux-x86_64
#cgo linux,arm64 LDFLAGS: -L${SRCDIR}/../../3rd/linux-aarch64 -lindigo -Wl,-rpath,${SRCDIR}/../../3rd/linux-aarch64
#cgo darwin,amd64 LDFLAGS: -L${SRCDIR}/../../3rd/darwin-x86_64 -lindigo -Wl,-rpath,${SRCDIR}/../../3rd/darwin-x86_64
#cgo darwin,arm64 LDFLAGS: -L${SRCDIR}/../../3rd/darwin-aarch64 -lindigo -Wl,-rpath,${SRCDIR}/../../3rd/darwin-aarch64

#include <stdlib.h>
#include "indigo.h"
*/
import "C"

import "github.com/cx-luo/tautenum/chem"

// Atom wraps one Indigo atom handle, scoped to the Molecule that produced it
// via Molecule.Atoms or Molecule.AtomByMapIndex.
type Atom struct {
	mol    *Molecule
	handle int
}

var _ chem.Atom = (*Atom)(nil)

func (a *Atom) AtomicNumber() int {
	a.mol.tk.activate()
	return int(C.indigoAtomicNumber(C.int(a.handle)))
}

func (a *Atom) FormalCharge() int {
	a.mol.tk.activate()
	return int(C.indigoGetCharge(C.int(a.handle)))
}

func (a *Atom) Valence() int {
	a.mol.tk.activate()
	return int(C.indigoValence(C.int(a.handle)))
}

func (a *Atom) HeavyValence() int {
	a.mol.tk.activate()
	return int(C.indigoGetExplicitValence(C.int(a.handle)))
}

func (a *Atom) Hybridization() int {
	a.mol.tk.activate()
	return int(C.indigoGetHybridization(C.int(a.handle)))
}

func (a *Atom) Degree() int {
	a.mol.tk.activate()
	return int(C.indigoDegree(C.int(a.handle)))
}

func (a *Atom) HeavyDegree() int {
	a.mol.tk.activate()
	return int(C.indigoDegree(C.int(a.handle))) - a.ImplicitHCount()
}

func (a *Atom) ExplicitHCount() int {
	a.mol.tk.activate()
	return int(C.indigoCountExplicitHydrogens(C.int(a.handle)))
}

func (a *Atom) ImplicitHCount() int {
	a.mol.tk.activate()
	return int(C.indigoCountImplicitHydrogens(C.int(a.handle)))
}

func (a *Atom) TotalHCount() int {
	return a.ExplicitHCount() + a.ImplicitHCount()
}

// MapIndex returns the atom-mapping number Indigo reports for this atom
// within its molecule, or 0 if unmapped. Applier.SetAssignMapIdx does not
// change what this returns.
func (a *Atom) MapIndex() int {
	a.mol.tk.activate()
	n := int(C.indigoGetAtomMappingNumber(C.int(a.mol.handle), C.int(a.handle)))
	if n < 0 {
		return 0
	}
	return n
}

func (a *Atom) HasStereoSpecified(kind chem.StereoKind) bool {
	a.mol.tk.activate()
	switch kind {
	case chem.StereoTetra:
		return int(C.indigoStereocenterType(C.int(a.handle))) != 0
	default:
		return false
	}
}

func (a *Atom) ClearStereo(kind chem.StereoKind) error {
	if kind != chem.StereoTetra {
		return nil
	}
	a.mol.tk.activate()
	C.indigoResetAtomStereo(C.int(a.handle))
	return nil
}
