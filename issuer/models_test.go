package issuer_test

import (
	"testing"

	"github.com/xraph/rewards/issuer"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12.345.678/0001-95", "12345678000195"},
		{"12345678000195", "12345678000195"},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := issuer.NormalizeCode(tt.in); got != tt.want {
				t.Errorf("NormalizeCode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromAccessKey(t *testing.T) {
	key := "351904" + "12345678000195" + "550010000012341000012345"
	got, ok := issuer.FromAccessKey(key)
	if !ok {
		t.Fatal("expected issuer to be extracted")
	}
	if got != "12345678000195" {
		t.Errorf("got %q", got)
	}

	if _, ok := issuer.FromAccessKey("3519"); ok {
		t.Error("expected short key to be rejected")
	}
}
