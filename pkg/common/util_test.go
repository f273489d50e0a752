package common

import (
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestCutString(t *testing.T) {
	type args struct {
		input string
		cut   int
	}
	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "Short text",
			args: args{input: "AWS Key Detected", cut: 100},
			want: "AWS Key Detected",
		},
		{
			name: "Exactly the limit",
			args: args{input: "12345", cut: 5},
			want: "12345",
		},
		{
			name: "Long text",
			args: args{input: "1234567890", cut: 8},
			want: "12345...",
		},
		{
			name: "Multi byte",
			args: args{input: "秘密が検出されました", cut: 6},
			want: "秘密が...",
		},
		{
			name: "Tiny limit",
			args: args{input: "abcdef", cut: 2},
			want: "ab",
		},
		{
			name: "Zero limit",
			args: args{input: "abcdef", cut: 0},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CutString(tt.args.input, tt.args.cut)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Unexpected value, diff=%s", diff)
			}
			if utf8.RuneCountInString(got) > tt.args.cut && tt.args.cut >= 0 {
				t.Errorf("CutString() exceeded the limit: got=%q", got)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Access key",
			input: "AKIA1234567890123456",
			want:  "AKIA12...3456",
		},
		{
			name:  "Short value",
			input: "secret",
			want:  "******",
		},
		{
			name:  "Empty",
			input: "",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskSecret(tt.input); got != tt.want {
				t.Errorf("MaskSecret() = %v, want %v", got, tt.want)
			}
		})
	}
}
