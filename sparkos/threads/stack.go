package threads

import "unsafe"

// canary fills stacks created with CreateStackTest.
const canary = 0xA5

// alignStack trims stack so that both its base and its length are multiples of
// StackAlign. It returns nil when nothing usable remains.
func alignStack(stack []byte) []byte {
	if len(stack) == 0 {
		return nil
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(stack)))
	skip := int((StackAlign - base%StackAlign) % StackAlign)
	if skip >= len(stack) {
		return nil
	}
	stack = stack[skip:]
	return stack[:len(stack)&^(StackAlign-1)]
}

func stackBounds(stack []byte) (lo, hi uintptr) {
	lo = uintptr(unsafe.Pointer(unsafe.SliceData(stack)))
	return lo, lo + uintptr(len(stack))
}

func overlaps(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	alo, ahi := stackBounds(a)
	blo, bhi := stackBounds(b)
	return alo < bhi && blo < ahi
}

func fillCanary(stack []byte) {
	for i := range stack {
		stack[i] = canary
	}
}

// untouched counts canary bytes from the low end of the stack; stacks grow down.
func untouched(stack []byte) int {
	n := 0
	for _, b := range stack {
		if b != canary {
			break
		}
		n++
	}
	return n
}
