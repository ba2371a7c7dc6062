package main

import (
	"reflect"
	"testing"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"txn-1", []string{"txn-1"}},
		{"txn-1, txn-2 ,txn-3", []string{"txn-1", "txn-2", "txn-3"}},
		{"txn-1,,", []string{"txn-1"}},
		{"", nil},
	}

	for _, tt := range tests {
		if got := parseIDs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseIDs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
