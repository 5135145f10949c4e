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
	"sync"
	"unsafe"

	"github.com/cx-luo/tautenum/chem"
)

// Molecule is a handle onto one Indigo molecule object, scoped to the
// Toolkit (and therefore the worker) that created it. It is not safe for
// concurrent use: the engine never shares a chem.Molecule across goroutines.
type Molecule struct {
	tk     *Toolkit
	handle int

	mu     sync.Mutex
	closed bool
}

func newMolecule(tk *Toolkit, handle int) *Molecule {
	return &Molecule{tk: tk, handle: handle}
}

var _ chem.Molecule = (*Molecule)(nil)

func (m *Molecule) checkOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return chem.ErrClosed
	}
	return nil
}

func (m *Molecule) Clone() (chem.Molecule, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	m.tk.activate()
	handle := int(C.indigoClone(C.int(m.handle)))
	if handle < 0 {
		return nil, fmt.Errorf("indigokit: clone: %s", lastError())
	}
	return newMolecule(m.tk, handle), nil
}

func (m *Molecule) Clear() error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.tk.activate()
	// indigoClear empties the molecule in place: the handle, and so the
	// Go-level identity, stays the same.
	if C.indigoClear(C.int(m.handle)) == 0 {
		return fmt.Errorf("indigokit: clear: %s", lastError())
	}
	return nil
}

func (m *Molecule) Title() string {
	if err := m.checkOpen(); err != nil {
		return ""
	}
	m.tk.activate()
	ptr := C.indigoName(C.int(m.handle))
	if ptr == nil {
		return ""
	}
	return C.GoString(ptr)
}

func (m *Molecule) SetTitle(title string) {
	if err := m.checkOpen(); err != nil {
		return
	}
	m.tk.activate()
	cTitle := C.CString(title)
	defer C.free(unsafe.Pointer(cTitle))
	C.indigoSetName(C.int(m.handle), cTitle)
}

func (m *Molecule) Atoms() []chem.Atom {
	if err := m.checkOpen(); err != nil {
		return nil
	}
	m.tk.activate()
	n := int(C.indigoCountAtoms(C.int(m.handle)))
	if n <= 0 {
		return nil
	}
	out := make([]chem.Atom, 0, n)
	for i := 0; i < n; i++ {
		h := int(C.indigoGetAtom(C.int(m.handle), C.int(i)))
		if h < 0 {
			continue
		}
		out = append(out, &Atom{mol: m, handle: h})
	}
	return out
}

func (m *Molecule) Bonds() []chem.Bond {
	if err := m.checkOpen(); err != nil {
		return nil
	}
	m.tk.activate()
	n := int(C.indigoCountBonds(C.int(m.handle)))
	if n <= 0 {
		return nil
	}
	out := make([]chem.Bond, 0, n)
	for i := 0; i < n; i++ {
		h := int(C.indigoGetBond(C.int(m.handle), C.int(i)))
		if h < 0 {
			continue
		}
		out = append(out, &Bond{mol: m, handle: h})
	}
	return out
}

// AtomByMapIndex linearly scans Atoms for the one whose atom-map index
// (the atom-mapping number Indigo reports for it) equals mapIdx. SMIRKS rules rarely map more than a handful of
// atoms, so a scan is simpler and cheap enough against a lookup table kept
// in sync with Indigo's own handle bookkeeping.
func (m *Molecule) AtomByMapIndex(mapIdx int) (chem.Atom, bool) {
	for _, a := range m.Atoms() {
		if a.MapIndex() == mapIdx {
			return a, true
		}
	}
	return nil, false
}

func (m *Molecule) PerceiveChirality() error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.tk.activate()
	// indigoClean2d assigns wedge/hash stereo bonds from any existing 2D/3D
	// coordinates when none were specified on load, Indigo's perceive-from-
	// geometry entry point; a molecule already carrying parsed stereo is a
	// no-op.
	if C.indigoClean2d(C.int(m.handle)) < 0 {
		return fmt.Errorf("indigokit: perceive chirality: %s", lastError())
	}
	return nil
}

func (m *Molecule) AssignAromaticity(model chem.AromaticityModel) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.tk.activate()

	opt := "basic"
	if model == chem.AromaticityDaylight {
		opt = "daylight"
	}
	cOpt := C.CString("aromaticity-model")
	defer C.free(unsafe.Pointer(cOpt))
	cVal := C.CString(opt)
	defer C.free(unsafe.Pointer(cVal))
	if C.indigoSetOption(cOpt, cVal) == 0 {
		return fmt.Errorf("indigokit: setting aromaticity model: %s", lastError())
	}
	if C.indigoDearomatize(C.int(m.handle)) < 0 {
		return fmt.Errorf("indigokit: dearomatize before reassigning: %s", lastError())
	}
	if C.indigoAromatize(C.int(m.handle)) < 0 {
		return fmt.Errorf("indigokit: assign aromaticity: %s", lastError())
	}
	return nil
}

func (m *Molecule) FindRingsAndBonds() error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.tk.activate()
	// indigoCountSSSR triggers Indigo's ring-perception pass as a side
	// effect; the engine only needs the perception, not the count.
	if C.indigoCountSSSR(C.int(m.handle)) < 0 {
		return fmt.Errorf("indigokit: find rings: %s", lastError())
	}
	return nil
}

func (m *Molecule) StripSalts() error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.tk.activate()

	n := int(C.indigoCountComponents(C.int(m.handle)))
	if n <= 1 {
		return nil
	}

	iter := int(C.indigoIterateComponents(C.int(m.handle)))
	if iter < 0 {
		return fmt.Errorf("indigokit: iterating components: %s", lastError())
	}
	largestHandle, largestSize := -1, -1
	for C.indigoHasNext(C.int(iter)) != 0 {
		comp := int(C.indigoNext(C.int(iter)))
		if comp < 0 {
			break
		}
		if size := int(C.indigoCountAtoms(C.int(comp))); size > largestSize {
			largestHandle, largestSize = comp, size
		}
	}
	if largestHandle < 0 {
		return nil
	}

	// Keep only the most heavy-atom-populous fragment (original_source's
	// strip_salts semantics, spec.md §4.7): clone that component view into a
	// standalone molecule and replace this handle with it.
	kept := int(C.indigoClone(C.int(largestHandle)))
	if kept < 0 {
		return fmt.Errorf("indigokit: cloning largest component: %s", lastError())
	}
	C.indigoFree(C.int(m.handle))
	m.handle = kept
	return nil
}

func (m *Molecule) CanonicalSMILES(opts chem.SMILESOptions) (string, error) {
	if err := m.checkOpen(); err != nil {
		return "", err
	}
	m.tk.activate()

	cOpt := C.CString("smiles-saving-atom-map")
	defer C.free(unsafe.Pointer(cOpt))
	include := "0"
	if opts.IncludeAtomMaps {
		include = "1"
	}
	cVal := C.CString(include)
	defer C.free(unsafe.Pointer(cVal))
	if C.indigoSetOption(cOpt, cVal) == 0 {
		return "", fmt.Errorf("indigokit: setting smiles-saving-atom-map: %s", lastError())
	}

	var ptr *C.char
	if opts.Isomeric {
		ptr = C.indigoCanonicalSmiles(C.int(m.handle))
	} else {
		ptr = C.indigoSmiles(C.int(m.handle))
	}
	if ptr == nil {
		return "", fmt.Errorf("indigokit: canonical smiles: %s", lastError())
	}
	return C.GoString(ptr), nil
}

func (m *Molecule) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.tk.activate()
	C.indigoFree(C.int(m.handle))
}
