// Package frame lays out the initial saved-register frame at the top of a
// thread stack.
//
// The layout mirrors a Cortex-M thread frame: the callee-saved registers r4-r11
// stored by the switch handler, followed by the eight words the exception entry
// pushes in hardware. A freshly created thread therefore "returns" from its first
// context restore straight into its entry point with the argument in r0 and the
// cleanup routine in lr.
//
//	+---------+ <- sp
//	| r4..r11 |  8 words
//	|   r0    |  arg
//	|   r1    |
//	|   r2    |
//	|   r3    |
//	|   r12   |
//	|   lr    |  cleanup
//	|   pc    |  entry
//	|   xpsr  |
//	+---------+ <- top of stack
package frame

import (
	"encoding/binary"
	"errors"
)

const (
	wordSize = 4
	words    = 16

	// Size is the number of bytes an initial frame occupies.
	Size = words * wordSize

	// InitialPSR has only the Thumb bit set.
	InitialPSR = 0x01000000

	// CleanupToken is stored in lr; returning from the entry lands in the exit path.
	CleanupToken = 0xFFFF_C1EA

	// entryBase tags pc values so that an entry token is never zero.
	entryBase = 0x0800_0000
)

const (
	slotR0 = 8 + iota
	slotR1
	slotR2
	slotR3
	slotR12
	slotLR
	slotPC
	slotPSR
)

var (
	ErrStackTooSmall = errors.New("frame: stack too small")
	ErrBadPointer    = errors.New("frame: saved pointer out of range")
)

// Regs is a decoded frame.
type Regs struct {
	Callee [8]uint32
	R0     uint32
	R1     uint32
	R2     uint32
	R3     uint32
	R12    uint32
	LR     uint32
	PC     uint32
	PSR    uint32
}

// EntryToken returns the pc value used for the entry of thread slot id.
func EntryToken(id uint8) uint32 {
	return entryBase | uint32(id)<<4
}

// Init writes an initial frame for a thread whose entry is identified by pc and
// whose argument word is arg. It returns the saved stack pointer as an offset
// into stack.
func Init(stack []byte, pc, arg uint32) (int, error) {
	if len(stack) < Size {
		return 0, ErrStackTooSmall
	}
	sp := (len(stack) - Size) &^ 7

	var r Regs
	r.R0 = arg
	r.R1 = 1
	r.R2 = 2
	r.R3 = 3
	r.R12 = 12
	r.LR = CleanupToken
	r.PC = pc
	r.PSR = InitialPSR
	encode(stack[sp:sp+Size], &r)
	return sp, nil
}

// Decode reads the frame stored at sp.
func Decode(stack []byte, sp int) (Regs, error) {
	if sp < 0 || sp+Size > len(stack) {
		return Regs{}, ErrBadPointer
	}
	b := stack[sp : sp+Size]
	var r Regs
	for i := range r.Callee {
		r.Callee[i] = word(b, i)
	}
	r.R0 = word(b, slotR0)
	r.R1 = word(b, slotR1)
	r.R2 = word(b, slotR2)
	r.R3 = word(b, slotR3)
	r.R12 = word(b, slotR12)
	r.LR = word(b, slotLR)
	r.PC = word(b, slotPC)
	r.PSR = word(b, slotPSR)
	return r, nil
}

func encode(b []byte, r *Regs) {
	for i, v := range r.Callee {
		putWord(b, i, v)
	}
	putWord(b, slotR0, r.R0)
	putWord(b, slotR1, r.R1)
	putWord(b, slotR2, r.R2)
	putWord(b, slotR3, r.R3)
	putWord(b, slotR12, r.R12)
	putWord(b, slotLR, r.LR)
	putWord(b, slotPC, r.PC)
	putWord(b, slotPSR, r.PSR)
}

func word(b []byte, slot int) uint32 {
	return binary.LittleEndian.Uint32(b[slot*wordSize:])
}

func putWord(b []byte, slot int, v uint32) {
	binary.LittleEndian.PutUint32(b[slot*wordSize:], v)
}
