package importer

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestToInt(t *testing.T) {
	cases := []struct {
		in   string
		want *int
	}{
		{"3", intPtr(3)},
		{" 3 ", intPtr(3)},
		{"-2", intPtr(-2)},
		{"3.0", intPtr(3)},
		{"3.5", nil},
		{"", nil},
		{"  ", nil},
		{"abc", nil},
		{"3a", nil},
	}
	for _, tc := range cases {
		got := toInt(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "toInt(%q)", tc.in)
		} else {
			if assert.NotNil(t, got, "toInt(%q)", tc.in) {
				assert.Equal(t, *tc.want, *got, "toInt(%q)", tc.in)
			}
		}
	}
}

func TestBlankRow(t *testing.T) {
	assert.True(t, blankRow(nil))
	assert.True(t, blankRow([]string{"", "  ", "\t"}))
	assert.False(t, blankRow([]string{"", "x"}))
}

// Property: every integer round-trips through its decimal and its
// trailing ".0" float form.
func TestPropertyToIntRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(-100000, 100000).Draw(t, "n")

		got := toInt(strconv.Itoa(n))
		if got == nil || *got != n {
			t.Fatalf("toInt(%d) = %v", n, got)
		}
		got = toInt(strconv.Itoa(n) + ".0")
		if got == nil || *got != n {
			t.Fatalf("toInt(%d.0) = %v", n, got)
		}
	})
}

func intPtr(n int) *int { return &n }
