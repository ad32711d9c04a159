package media

import "testing"

func TestParseDuration(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "whole seconds", raw: "42.000000\n", want: 42},
		{name: "rounds up", raw: "12.6", want: 13},
		{name: "rounds down", raw: "12.4", want: 12},
		{name: "zero", raw: "0.0", want: 0},
		{name: "empty", raw: "", wantErr: true},
		{name: "not available", raw: "N/A\n", wantErr: true},
		{name: "garbage", raw: "duration=?", wantErr: true},
		{name: "negative", raw: "-3.5", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseDuration(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseDuration(%q) expected error, got %d", tc.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDuration(%q) returned error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("parseDuration(%q) = %d, want %d", tc.raw, got, tc.want)
			}
		})
	}
}
