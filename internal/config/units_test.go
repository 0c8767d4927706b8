package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"1024", 1024, false},
		{"5MB", 5 * 1024 * 1024, false},
		{"1.5 GB", 1536 * 1024 * 1024, false},
		{"500kib", 500 * 1024, false},
		{"100.0 MB", 100 * 1024 * 1024, false},
		{"", 0, true},
		{"MB", 0, true},
		{"10 parsecs", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestByteSize_RoundTrip(t *testing.T) {
	size := ByteSize(100 * 1024 * 1024)
	text, err := size.MarshalText()
	require.NoError(t, err)

	var parsed ByteSize
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, size, parsed)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1d12h", 36 * time.Hour, false},
		{"720h", 720 * time.Hour, false},
		{"0", 0, false},
		{"", 0, true},
		{"d", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Duration())
		})
	}
}

func TestDuration_String(t *testing.T) {
	assert.Equal(t, "0s", Duration(0).String())
	assert.Equal(t, "15m0s", Duration(15*time.Minute).String())
	assert.Equal(t, "7d", Duration(7*24*time.Hour).String())
	assert.Equal(t, "1d12h0m0s", Duration(36*time.Hour).String())
}
