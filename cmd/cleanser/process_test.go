package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		out     string
		want    string
		wantErr bool
	}{
		{"report.xlsx", "xlsx", false},
		{"out/REPORT.CSV", "csv", false},
		{"r.json", "json", false},
		{"-", "json", false},
		{"report.pdf", "", true},
		{"report", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			got, err := outputFormat(tt.out)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
