package domain

import "testing"

func TestHashKeyIsStable(t *testing.T) {
	a := HashKey("United States")
	b := HashKey("United States")
	if a != b {
		t.Fatalf("HashKey not stable: %v != %v", a, b)
	}
}

func TestHashKeyKnownVector(t *testing.T) {
	// hash_key("United States") = 372b, per spec §8 scenario 1.
	got := HashKey("United States")
	if got.String() != "372b" {
		t.Fatalf("HashKey(%q) = %s, want 372b", "United States", got.String())
	}
}

func TestParseIDRoundTrip(t *testing.T) {
	cases := []struct{ in, want string }{
		{"0000", "0000"},
		{"ffff", "ffff"},
		{"4b12", "4b12"},
		{"0x372b", "372b"},
	}
	for _, c := range cases {
		id, err := ParseID(c.in)
		if err != nil {
			t.Fatalf("ParseID(%q) error: %v", c.in, err)
		}
		if id.String() != c.want {
			t.Fatalf("ParseID(%q).String() = %s, want %s", c.in, id.String(), c.want)
		}
	}
}

func TestParseIDInvalid(t *testing.T) {
	for _, s := range []string{"", "zzzz", "123456"} {
		if _, err := ParseID(s); err == nil {
			t.Fatalf("ParseID(%q) expected error", s)
		}
	}
}

func TestForwardDistance(t *testing.T) {
	a, b := ID(0x4b12), ID(0xfa35)
	d := a.ForwardDistance(b)
	if ID(a)+ID(d) != b {
		t.Fatalf("forward distance inconsistent: a+%d != b", d)
	}
	// distance from a node to itself is zero.
	if a.ForwardDistance(a) != 0 {
		t.Fatalf("self forward distance should be 0")
	}
}

func TestAbsDistanceSymmetric(t *testing.T) {
	a, b := ID(0x1000), ID(0x2000)
	if a.AbsDistance(b) != b.AbsDistance(a) {
		t.Fatalf("AbsDistance should be symmetric")
	}
	if a.AbsDistance(b) != 0x1000 {
		t.Fatalf("AbsDistance(0x1000, 0x2000) = %x, want 1000", a.AbsDistance(b))
	}
}

func TestBetweenWholeRing(t *testing.T) {
	x := ID(0x1234)
	if !x.Between(ID(0x9999), ID(0x9999)) {
		t.Fatalf("Between should cover the whole ring when a==b")
	}
}

func TestBetweenLinearAndWrap(t *testing.T) {
	if !ID(0x50).Between(ID(0x10), ID(0x60)) {
		t.Fatalf("linear interval membership failed")
	}
	if ID(0x05).Between(ID(0x10), ID(0x60)) {
		t.Fatalf("linear interval should exclude values below a")
	}
	// wrap-around: (0xff00, 0x0010] includes 0x0005 and 0xffaa.
	if !ID(0x0005).Between(ID(0xff00), ID(0x0010)) {
		t.Fatalf("wrap-around interval should include values past zero")
	}
	if !ID(0xffaa).Between(ID(0xff00), ID(0x0010)) {
		t.Fatalf("wrap-around interval should include values before zero")
	}
	if ID(0x0011).Between(ID(0xff00), ID(0x0010)) {
		t.Fatalf("wrap-around interval should exclude values past upper bound")
	}
}

func TestCommonPrefixLen(t *testing.T) {
	cases := []struct {
		a, b ID
		want int
	}{
		{0x3722, 0x3745, 2},
		{0x3722, 0x3722, 4},
		{0x1000, 0x2000, 0},
		{0x3745, 0x3745, 4},
	}
	for _, c := range cases {
		if got := c.a.CommonPrefixLen(c.b); got != c.want {
			t.Fatalf("CommonPrefixLen(%s, %s) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestDigit(t *testing.T) {
	id := ID(0x3745)
	want := []int{3, 7, 4, 5}
	for i, w := range want {
		if got := id.Digit(i); got != w {
			t.Fatalf("Digit(%d) = %d, want %d", i, got, w)
		}
	}
}
