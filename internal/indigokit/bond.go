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

// Bond wraps one Indigo bond handle, scoped to the Molecule that produced it
// via Molecule.Bonds.
type Bond struct {
	mol    *Molecule
	handle int
}

var _ chem.Bond = (*Bond)(nil)

func (b *Bond) Order() int {
	b.mol.tk.activate()
	return int(C.indigoBondOrder(C.int(b.handle)))
}

func (b *Bond) BeginMapIndex() int {
	b.mol.tk.activate()
	src := int(C.indigoSource(C.int(b.handle)))
	if src < 0 {
		return 0
	}
	n := int(C.indigoGetAtomMappingNumber(C.int(b.mol.handle), C.int(src)))
	if n < 0 {
		return 0
	}
	return n
}

func (b *Bond) EndMapIndex() int {
	b.mol.tk.activate()
	dst := int(C.indigoDestination(C.int(b.handle)))
	if dst < 0 {
		return 0
	}
	n := int(C.indigoGetAtomMappingNumber(C.int(b.mol.handle), C.int(dst)))
	if n < 0 {
		return 0
	}
	return n
}

func (b *Bond) HasStereoSpecified() bool {
	b.mol.tk.activate()
	return int(C.indigoBondStereo(C.int(b.handle))) != 0
}
