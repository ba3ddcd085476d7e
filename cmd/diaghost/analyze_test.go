package main

import (
	"reflect"
	"testing"

	"diaghost/internal/analyzers"
)

func TestParseSpan(t *testing.T) {
	tests := []struct {
		in      string
		want    *analyzers.TextSpan
		wantErr bool
	}{
		{"", nil, false},
		{"0:10", &analyzers.TextSpan{Start: 0, End: 10}, false},
		{" 4 : 4 ", &analyzers.TextSpan{Start: 4, End: 4}, false},
		{"10", nil, true},
		{"a:3", nil, true},
		{"3:b", nil, true},
		{"5:2", nil, true},
		{"-1:2", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSpan(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSpan(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseSpan(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a, b ,,c", []string{"a", "b", "c"}},
		{" , ", nil},
	}

	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
