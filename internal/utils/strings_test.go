package utils

import "testing"

func TestToSnakeCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Abs", "abs"},
		{"IsFinite", "is_finite"},
		{"BroadcastInDim", "broadcast_in_dim"},
		{"Reduce", "reduce"},
		{"And", "and"},
	}
	for _, test := range tests {
		if got := ToSnakeCase(test.in); got != test.want {
			t.Errorf("ToSnakeCase(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct{ in, want string }{
		{"buffer_comparator", "buffer_comparator"},
		{"TestBuilder/with inputs", "TestBuilder_with_inputs"},
		{"1st", "_1st"},
		{"", ""},
	}
	for _, test := range tests {
		if got := NormalizeIdentifier(test.in); got != test.want {
			t.Errorf("NormalizeIdentifier(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}
