package pool

import "golang.org/x/exp/constraints"

// ceilDivGeneric rounds n up to the next multiple of d, expressed once
// for any unsigned integer size-class computation this package needs
// rather than duplicating the arithmetic per concrete type.
func ceilDivGeneric[T constraints.Unsigned](n, d T) T {
	return (n + d - 1) / d
}

// blockCount returns the number of blockSize-sized blocks required to
// hold n bytes plus a header.
func blockCount[T constraints.Unsigned](n, headerSize, blockSize T) T {
	k := ceilDivGeneric(n+headerSize, blockSize)
	var zero T
	if k == zero {
		return 1
	}
	return k
}
