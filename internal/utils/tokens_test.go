package utils_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/claridata/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"tiny", "hi", 1},
		{"simple", "hello world", 2},
		{"long", strings.Repeat("a", 4000), 1000},
		{"runes", strings.Repeat("é", 8), 2},
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, got, c.want)
		}
	}
}

func TestCountTokensAll(t *testing.T) {
	if got := utils.CountTokensAll("abcd", "", "abcdefgh"); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
}
