package semver

import "testing"

func TestVersionCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.2.0", "1.1.9", 1},
		{"1.0.0-alpha", "1.0.0", -1},
	}
	for _, c := range cases {
		a, err := Parse(c.a)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.a, err)
		}
		b, err := Parse(c.b)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.b, err)
		}
		if got := a.Compare(b); got != c.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestVersionReqMatches(t *testing.T) {
	cases := []struct {
		req, v string
		want   bool
	}{
		{"^1.4", "1.4.0", true},
		{"^1.4", "1.9.9", true},
		{"^1.4", "2.0.0", false},
		{">=1.5,<2", "1.5.0", true},
		{">=1.5,<2", "2.0.0", false},
		{"=1.5.4", "1.5.4", true},
		{"=1.5.4", "1.5.5", false},
	}
	for _, c := range cases {
		req, err := ParseVersionReq(c.req)
		if err != nil {
			t.Fatalf("ParseVersionReq(%q): %v", c.req, err)
		}
		v, err := Parse(c.v)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.v, err)
		}
		if got := req.Matches(v); got != c.want {
			t.Errorf("%q.Matches(%q) = %v, want %v", c.req, c.v, got, c.want)
		}
	}
}

func TestVersionReqExact(t *testing.T) {
	req, err := ParseVersionReq("=1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	v, ok := req.Exact()
	if !ok {
		t.Fatal("expected Exact to report true for =1.2.3")
	}
	if v.String() != "1.2.3" {
		t.Errorf("Exact() = %q, want 1.2.3", v.String())
	}

	req2, err := ParseVersionReq("^1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := req2.Exact(); ok {
		t.Error("expected Exact to report false for ^1.2.3")
	}
}
