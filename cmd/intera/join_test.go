package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoomInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare room ID",
			input: "amber-otter-quiet-harbor",
			want:  "amber-otter-quiet-harbor",
		},
		{
			name:  "call page URL",
			input: "https://intera.qzz.io/call-page/amber-otter-quiet-harbor",
			want:  "amber-otter-quiet-harbor",
		},
		{
			name:  "call page URL with trailing slash",
			input: "https://intera.qzz.io/call-page/amber-otter-quiet-harbor/",
			want:  "amber-otter-quiet-harbor",
		},
		{
			name:  "custom domain",
			input: "http://localhost:8080/call-page/amber-otter-quiet-harbor",
			want:  "amber-otter-quiet-harbor",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "URL without a room segment",
			input:   "https://intera.qzz.io/call-page/",
			wantErr: true,
		},
		{
			name:    "unrelated URL",
			input:   "https://intera.qzz.io/about",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRoomInput(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
