// Package mmu implements Aquarium's two-level paging memory management unit:
// a pure virtual-to-physical address translator with permission checking and
// no TLB, walking the page table on every access.
package mmu

import (
	"fmt"

	"github.com/aquarium-sim/aquarium/internal/mem"
)

// Page table entry bit layout: frame:20 | unused:8 | U | X | W | R | P.
const (
	bitPresent = 1 << 0
	bitRead    = 1 << 1
	bitWrite   = 1 << 2
	bitExec    = 1 << 3
	bitUser    = 1 << 4

	frameShift = 12
	pageSize   = 1 << 12
	pageMask   = pageSize - 1

	dirShift = 22
	tblShift = 12
	idxMask  = 0x3ff
)

// Access identifies the kind of access being translated, for permission
// checking and fault reporting.
type Access uint8

const (
	AccessRead Access = iota
	AccessWrite
	AccessExec
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessExec:
		return "exec"
	default:
		return "unknown"
	}
}

// Fault is returned by Translate when a virtual address cannot be resolved,
// either because no mapping exists (PageFault) or because the access kind is
// not permitted by the mapping's bits (PermissionFault).
type Fault struct {
	VA         uint32
	Access     Access
	Kind       FaultKind
	Privileged bool // true if the running mode was privileged at fault time
}

// FaultKind distinguishes why a translation failed.
type FaultKind uint8

const (
	PageFault FaultKind = iota
	PermissionFault
)

func (f *Fault) Error() string {
	kind := "page fault"
	if f.Kind == PermissionFault {
		kind = "permission fault"
	}

	return fmt.Sprintf("%s: va=%#08x access=%s", kind, f.VA, f.Access)
}

// MMU translates virtual addresses using a two-level page table rooted at
// Base. When Base is zero, translation is identity (va == pa) and no faults
// are ever raised, per the teacher's convention of a zero base disabling
// paging entirely.
type MMU struct {
	Base uint32 // physical address of the page directory; 0 disables paging
	phys *mem.Physical

	// User reports whether the current access originates from user mode,
	// consulted for permission checks on the U bit. sim.Machine keeps this
	// synced with the processor's privilege level.
	User bool
}

// New returns an MMU with paging disabled (identity mapping) by default.
func New(phys *mem.Physical) *MMU {
	return &MMU{phys: phys}
}

func pte(word uint32) (present, readable, writable, executable, user bool, frame uint32) {
	present = word&bitPresent != 0
	readable = word&bitRead != 0
	writable = word&bitWrite != 0
	executable = word&bitExec != 0
	user = word&bitUser != 0
	frame = (word >> frameShift) << frameShift

	return present, readable, writable, executable, user, frame
}

// Translate resolves a virtual address to a physical address for the given
// access kind, walking the two-level page table rooted at Base. If Base is
// zero, va translates to itself unconditionally.
func (m *MMU) Translate(va uint32, access Access) (uint32, error) {
	if m.Base == 0 {
		return va, nil
	}

	dirIdx := (va >> dirShift) & idxMask
	tblIdx := (va >> tblShift) & idxMask
	offset := va & pageMask

	dirEntryAddr := m.Base + dirIdx*4

	dirWord, err := m.phys.ReadWord(dirEntryAddr)
	if err != nil {
		return 0, err
	}

	present, _, _, _, _, tableFrame := pte(dirWord)
	if !present {
		return 0, &Fault{VA: va, Access: access, Kind: PageFault, Privileged: !m.User}
	}

	tblEntryAddr := tableFrame + tblIdx*4

	tblWord, err := m.phys.ReadWord(tblEntryAddr)
	if err != nil {
		return 0, err
	}

	present, readable, writable, executable, user, pageFrame := pte(tblWord)
	if !present {
		return 0, &Fault{VA: va, Access: access, Kind: PageFault, Privileged: !m.User}
	}

	if m.User && !user {
		return 0, &Fault{VA: va, Access: access, Kind: PermissionFault, Privileged: false}
	}

	switch access {
	case AccessRead:
		if !readable {
			return 0, &Fault{VA: va, Access: access, Kind: PermissionFault, Privileged: !m.User}
		}
	case AccessWrite:
		if !writable {
			return 0, &Fault{VA: va, Access: access, Kind: PermissionFault, Privileged: !m.User}
		}
	case AccessExec:
		if !executable {
			return 0, &Fault{VA: va, Access: access, Kind: PermissionFault, Privileged: !m.User}
		}
	}

	return pageFrame | offset, nil
}

// MakePTE builds a page table entry word from its fields, for use by tests
// and the loader when constructing page tables.
func MakePTE(frame uint32, present, readable, writable, executable, user bool) uint32 {
	word := frame &^ pageMask

	if present {
		word |= bitPresent
	}

	if readable {
		word |= bitRead
	}

	if writable {
		word |= bitWrite
	}

	if executable {
		word |= bitExec
	}

	if user {
		word |= bitUser
	}

	return word
}
