package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		code    string
		want    Currency
		wantErr bool
	}{
		{"RUB", RUB, false},
		{"USD", USD, false},
		{"EUR", "", true},
		{"usd", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := Parse(tt.code)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewAmount_LocksRate(t *testing.T) {
	a, err := NewAmount(types.MustMoney("10"), USD, types.MustMoney("90"))
	require.NoError(t, err)
	assert.Equal(t, "900", a.RUBEquivalent().String())
}

func TestNewAmount_RUBForcesRateOne(t *testing.T) {
	a, err := NewAmount(types.MustMoney("5000"), RUB, types.MustMoney("42"))
	require.NoError(t, err)
	assert.Equal(t, "1", a.Rate.String())
	assert.True(t, a.RUBEquivalent().Equal(types.MustMoney("5000")))
}

func TestNewAmount_RejectsMissingRate(t *testing.T) {
	_, err := NewAmount(types.MustMoney("10"), USD, types.Zero())
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestNewAmount_RejectsNegative(t *testing.T) {
	_, err := NewAmount(types.MustMoney("-1"), RUB, types.Zero())
	require.Error(t, err)
}

func TestDirectionFor(t *testing.T) {
	d, ok := DirectionFor(USD)
	require.True(t, ok)
	assert.Equal(t, USDToRUB, d)

	_, ok = DirectionFor(RUB)
	assert.False(t, ok)
}
