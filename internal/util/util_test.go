package util

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"069 200 0001", "0692000001"},
		{"+355 69 200-0001", "+355692000001"},
		{"  (069) 200.0001  ", "0692000001"},
		{"069+200", "069200"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Fatalf("NormalizePhone(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"0692000001", "******0001"},
		{"+35569200001", "********0001"},
		{"123", "***"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := MaskPhone(tc.in); got != tc.want {
			t.Fatalf("MaskPhone(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
