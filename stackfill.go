package rtkernel

// FillStack overwrites wa with StackFillValue
func FillStack(wa []byte) {
	for i := range wa {
		wa[i] = StackFillValue
	}
}

// UnusedStack counts the StackFillValue bytes at the base of wa, the part of
// a filled working area that was never written
func UnusedStack(wa []byte) int {
	n := 0
	for n < len(wa) && wa[n] == StackFillValue {
		n++
	}
	return n
}
