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

import (
	"fmt"
	"unsafe"

	"github.com/cx-luo/tautenum/chem"
)

// Applier is one compiled SMIRKS reaction rule, reusable across molecules
// within a single worker's Toolkit but never shared across goroutines
// (spec.md §3 invariant, §5). Exactly one Applier exists per Rule, built
// lazily and cached by ruleset.CompiledSet.
type Applier struct {
	tk      *Toolkit
	rxn     int
	assignMapIdx bool

	source       *Molecule
	reactantsCnt int
}

func newApplier(tk *Toolkit, rxnHandle int) *Applier {
	cnt := int(C.indigoCountReactants(C.int(rxnHandle)))
	if cnt <= 0 {
		cnt = 1
	}
	return &Applier{tk: tk, rxn: rxnHandle, reactantsCnt: cnt}
}

var _ chem.RuleApplier = (*Applier)(nil)

// SetAssignMapIdx records enabled; its only effect is the value the product
// iterator gives Indigo's "smiles-saving-atom-map" option as each product is
// yielded (an option Molecule.CanonicalSMILES sets again on every call). It
// does not change which atom-mapping numbers a product carries.
func (a *Applier) SetAssignMapIdx(enabled bool) { a.assignMapIdx = enabled }

// SetValidateKekule disables Indigo's reaction-validation pass during
// product enumeration (spec.md §4.2): the engine re-perceives aromaticity on
// every product itself and does not need (and does not trust) the toolkit's
// own kekulization check.
func (a *Applier) SetValidateKekule(enabled bool) {
	a.tk.activate()
	val := "1"
	if !enabled {
		val = "0"
	}
	cOpt := C.CString("reaction-validate-kekule")
	cVal := C.CString(val)
	C.indigoSetOption(cOpt, cVal)
	C.free(unsafe.Pointer(cOpt))
	C.free(unsafe.Pointer(cVal))
}

func (a *Applier) NumReactants() int { return a.reactantsCnt }

// StartingMaterial returns, for i == 0, the whole molecule bound by the most
// recent SetSource (not a view restricted to the matched atoms); this is what
// engine.RemoveAlteredStereochem compares products against.
func (a *Applier) StartingMaterial(i int) (chem.Molecule, bool) {
	if a.source == nil || i != 0 {
		// Tautomer/protonation SMIRKS rules are unimolecular (spec.md §3);
		// only reactant 0 is ever meaningfully the bound source.
		return nil, false
	}
	return a.source, true
}

func (a *Applier) SetSource(mol chem.Molecule) (int, error) {
	src, ok := mol.(*Molecule)
	if !ok {
		return 0, fmt.Errorf("indigokit: SetSource requires an indigokit.Molecule, got %T", mol)
	}
	a.tk.activate()
	a.source = src

	reactant := int(C.indigoGetReactant(C.int(a.rxn), C.int(0)))
	if reactant < 0 {
		return 0, fmt.Errorf("indigokit: reading rule's reactant pattern: %s", lastError())
	}
	matcher := int(C.indigoSubstructureMatcher(C.int(src.handle), nil))
	if matcher < 0 {
		return 0, fmt.Errorf("indigokit: building substructure matcher: %s", lastError())
	}
	n := int(C.indigoCountMatches(C.int(matcher), C.int(reactant)))
	if n < 0 {
		return 0, fmt.Errorf("indigokit: counting matches: %s", lastError())
	}
	return n, nil
}

func (a *Applier) Products() chem.ProductIterator {
	if a.source == nil {
		return &productIter{}
	}
	a.tk.activate()

	monomerSet := int(C.indigoCreateArray())
	C.indigoArrayAdd(C.int(monomerSet), C.int(a.source.handle))
	monomers := int(C.indigoCreateArray())
	C.indigoArrayAdd(C.int(monomers), C.int(monomerSet))

	enumerated := int(C.indigoReactionProductEnumerate(C.int(a.rxn), C.int(monomers)))
	if enumerated < 0 {
		return &productIter{}
	}
	return &productIter{tk: a.tk, array: enumerated, assignMapIdx: a.assignMapIdx}
}

// productIter walks the array of enumerated product reactions Indigo
// returns from indigoReactionProductEnumerate, yielding each reaction's
// product-side molecule (spec.md §4.2 Products contract: a lazy, single-pass
// sequence).
type productIter struct {
	tk           *Toolkit
	array        int
	assignMapIdx bool
	started      bool
}

var _ chem.ProductIterator = (*productIter)(nil)

func (it *productIter) Next() (chem.Molecule, bool) {
	if it.tk == nil {
		return nil, false
	}
	it.tk.activate()
	if !it.started {
		it.array = int(C.indigoIterateArray(C.int(it.array)))
		it.started = true
	}
	if C.indigoHasNext(C.int(it.array)) == 0 {
		return nil, false
	}
	rxnHandle := int(C.indigoNext(C.int(it.array)))
	if rxnHandle < 0 {
		return nil, false
	}

	productsIter := int(C.indigoIterateProducts(C.int(rxnHandle)))
	if productsIter < 0 || C.indigoHasNext(C.int(productsIter)) == 0 {
		return nil, false
	}
	productHandle := int(C.indigoNext(C.int(productsIter)))
	if productHandle < 0 {
		return nil, false
	}

	cOpt := C.CString("smiles-saving-atom-map")
	cVal := "0"
	if it.assignMapIdx {
		cVal = "1"
	}
	cValC := C.CString(cVal)
	C.indigoSetOption(cOpt, cValC)
	C.free(unsafe.Pointer(cOpt))
	C.free(unsafe.Pointer(cValC))

	return newMolecule(it.tk, productHandle), true
}
