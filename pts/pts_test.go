package pts

import "testing"

func TestEmptyAndSingleton(t *testing.T) {
	e := Empty()
	if e.Size() != 0 {
		t.Fatalf("Empty().Size() = %d, want 0", e.Size())
	}
	s := Singleton(3)
	if !s.Has(3) || s.Has(4) {
		t.Fatalf("Singleton(3) membership wrong: %v", s)
	}
	if s.Size() != 1 {
		t.Fatalf("Singleton(3).Size() = %d, want 1", s.Size())
	}
}

func TestUnionAndInterning(t *testing.T) {
	a := Singleton(1).Insert(2)
	b := Singleton(2).Insert(1)
	if !a.Equal(b) {
		t.Fatalf("sets with identical contents should be the same interned handle: %v vs %v", a, b)
	}
	c := a.Union(Singleton(3))
	if c.Size() != 3 || !c.Has(1) || !c.Has(2) || !c.Has(3) {
		t.Fatalf("unexpected union result: %v", c)
	}
}

func TestIncludesAndIntersects(t *testing.T) {
	ab := Singleton(1).Insert(2)
	a := Singleton(1)
	if !ab.Includes(a) {
		t.Fatalf("{1,2} should include {1}")
	}
	if a.Includes(ab) {
		t.Fatalf("{1} should not include {1,2}")
	}
	bc := Singleton(2).Insert(3)
	if !ab.Intersects(bc) {
		t.Fatalf("{1,2} and {2,3} should intersect")
	}
	if a.Intersects(Singleton(9)) {
		t.Fatalf("{1} and {9} should not intersect")
	}
}

func TestForEachOrder(t *testing.T) {
	s := Singleton(5).Insert(1).Insert(3)
	var got []ObjID
	s.ForEach(func(o ObjID) bool { got = append(got, o); return true })
	want := []ObjID{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMonotoneGrowth(t *testing.T) {
	// Repeated Union must only ever grow a set, never shrink it.
	s := Empty()
	seen := map[ObjID]bool{}
	for i := ObjID(0); i < 20; i++ {
		prev := s
		s = s.Union(Singleton(i))
		if !s.Includes(prev) {
			t.Fatalf("monotonicity violated inserting %d", i)
		}
		seen[i] = true
	}
	if s.Size() != len(seen) {
		t.Fatalf("final size %d, want %d", s.Size(), len(seen))
	}
}

func TestBDDBackendMatchesSparse(t *testing.T) {
	// Reset package state isn't possible (backend latches for the
	// process), so this test only runs meaningfully once per process;
	// it still documents and checks the BDD repr directly rather than
	// through the latched Set API to avoid cross-test interference.
	m := manager()
	c1 := m.cube(1)
	c2 := m.cube(2)
	u := m.or(c1, c2)
	var got []ObjID
	m.allSat(u, 0, 0, func(o ObjID) bool { got = append(got, o); return true })
	if len(got) != 2 {
		t.Fatalf("allSat(cube(1)|cube(2)) = %v, want [1 2]", got)
	}
	if !m.leq(c1, u, 0) {
		t.Fatalf("cube(1) should be <= cube(1)|cube(2)")
	}
	if m.leq(u, c1, 0) {
		t.Fatalf("cube(1)|cube(2) should not be <= cube(1)")
	}
	if !m.intersectsAt(c1, u, 0) {
		t.Fatalf("cube(1) should intersect cube(1)|cube(2)")
	}
}
