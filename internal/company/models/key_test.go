package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "orglens/pkg/domain-errors"
)

func TestParseINN(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "legal entity", raw: "7707083893", want: "7707083893"},
		{name: "sole proprietor", raw: "526317984689", want: "526317984689"},
		{name: "surrounding whitespace", raw: "  7707083893  ", want: "7707083893"},
		{name: "embedded separators", raw: "77-07 08.38-93", want: "7707083893"},
		{name: "too short", raw: "12345", wantErr: true},
		{name: "eleven digits", raw: "12345678901", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "letters only", raw: "abcdef", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseINN(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, KeyINN, key.Kind)
			assert.Equal(t, tt.want, key.Value)
		})
	}
}

func TestParseOGRN(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "legal entity", raw: "1027700132195", want: "1027700132195"},
		{name: "sole proprietor", raw: "304500116000157", want: "304500116000157"},
		{name: "with spaces", raw: " 1027700132195 ", want: "1027700132195"},
		{name: "fourteen digits", raw: "10277001321951", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseOGRN(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, KeyOGRN, key.Kind)
			assert.Equal(t, tt.want, key.Value)
		})
	}
}

func TestParseNameQuery(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "simple", raw: "Газпром", want: "газпром"},
		{name: "collapses whitespace", raw: "  ПАО   Газпром \t", want: "пао газпром"},
		{name: "lowercases latin", raw: "YANDEX LLC", want: "yandex llc"},
		{name: "whitespace only", raw: "   \t\n", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseNameQuery(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, KeyName, key.Kind)
			assert.Equal(t, tt.want, key.Value)
		})
	}
}

// Normalization must be idempotent: parsing an already-canonical value yields
// the same key, so equivalent inputs always map to one cache slot.
func TestParseIdempotent(t *testing.T) {
	inn, err := ParseINN(" 77-07083893 ")
	require.NoError(t, err)
	again, err := ParseINN(inn.Value)
	require.NoError(t, err)
	assert.Equal(t, inn, again)

	name, err := ParseNameQuery("  ПАО \t Газпром ")
	require.NoError(t, err)
	again, err = ParseNameQuery(name.Value)
	require.NoError(t, err)
	assert.Equal(t, name, again)
}

func TestLookupKeyString(t *testing.T) {
	assert.Equal(t, "inn:7707083893", LookupKey{Kind: KeyINN, Value: "7707083893"}.String())
	assert.Equal(t, "name:пао газпром", LookupKey{Kind: KeyName, Value: "пао газпром"}.String())
	assert.True(t, LookupKey{}.IsZero())
	assert.False(t, LookupKey{Kind: KeyINN, Value: "7707083893"}.IsZero())
}
