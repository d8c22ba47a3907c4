package pts

import (
	"strconv"
	"strings"

	"github.com/willf/bitset"
)

// sparseRepr stores a points-to set as a willf/bitset.BitSet keyed by
// ObjID.
type sparseRepr struct {
	bs *bitset.BitSet
}

func newSparse(o ObjID) repr {
	bs := bitset.New(uint(o) + 1)
	bs.Set(uint(o))
	return sparseRepr{bs: bs}
}

func (r sparseRepr) has(o ObjID) bool {
	if r.bs == nil {
		return false
	}
	return r.bs.Test(uint(o))
}

func (r sparseRepr) union(other repr) repr {
	o, ok := other.(sparseRepr)
	if !ok {
		panic("pts: mixed backend union")
	}
	if r.bs == nil {
		return o
	}
	if o.bs == nil {
		return r
	}
	return sparseRepr{bs: r.bs.Union(o.bs)}
}

func (r sparseRepr) includes(other repr) bool {
	o, ok := other.(sparseRepr)
	if !ok {
		panic("pts: mixed backend includes")
	}
	if o.bs == nil {
		return true
	}
	if r.bs == nil {
		return false
	}
	// other ⊆ r  <=>  other &^ r == ∅
	diff := o.bs.Difference(r.bs)
	return diff.None()
}

func (r sparseRepr) intersects(other repr) bool {
	o, ok := other.(sparseRepr)
	if !ok {
		panic("pts: mixed backend intersects")
	}
	if r.bs == nil || o.bs == nil {
		return false
	}
	return r.bs.IntersectionCardinality(o.bs) > 0
}

func (r sparseRepr) forEach(f func(ObjID) bool) {
	if r.bs == nil {
		return
	}
	for i, ok := r.bs.NextSet(0); ok; i, ok = r.bs.NextSet(i + 1) {
		if !f(ObjID(i)) {
			return
		}
	}
}

func (r sparseRepr) size() int {
	if r.bs == nil {
		return 0
	}
	return int(r.bs.Count())
}

func (r sparseRepr) key() string {
	if r.bs == nil {
		return ""
	}
	var sb strings.Builder
	for i, ok := r.bs.NextSet(0); ok; i, ok = r.bs.NextSet(i + 1) {
		sb.WriteString(strconv.FormatUint(uint64(i), 36))
		sb.WriteByte(',')
	}
	return sb.String()
}
