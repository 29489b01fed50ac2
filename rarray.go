/*
Copyright © 2026 the Gridmap authors.
This file is part of Gridmap.

Gridmap is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Gridmap is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Gridmap.  If not, see <http://www.gnu.org/licenses/>.
*/

package gridmap

import "math"

// An indexArray is a growable array of non-negative integers stored at
// the narrowest element width that fits the values the caller will
// store. Large remapping tables hold two of these, so halving the
// element width halves the table.
type indexArray interface {
	len() int
	get(k int) int64
	push(v int64)
	swap(k, l int)
}

// newIndexArray returns an indexArray able to hold values in
// [0, maxValue].
func newIndexArray(maxValue int64) indexArray {
	switch {
	case maxValue <= math.MaxUint8:
		return new(uintArray[uint8])
	case maxValue <= math.MaxUint16:
		return new(uintArray[uint16])
	case maxValue <= math.MaxUint32:
		return new(uintArray[uint32])
	default:
		return new(uintArray[uint64])
	}
}

type uintArray[T uint8 | uint16 | uint32 | uint64] struct {
	vals []T
}

func (a *uintArray[T]) len() int         { return len(a.vals) }
func (a *uintArray[T]) get(k int) int64  { return int64(a.vals[k]) }
func (a *uintArray[T]) push(v int64)     { a.vals = append(a.vals, T(v)) }
func (a *uintArray[T]) swap(k, l int) {
	a.vals[k], a.vals[l] = a.vals[l], a.vals[k]
}
