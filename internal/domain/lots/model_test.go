package lots

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"timberlot/internal/core/types"
)

func TestDimensions_Volume(t *testing.T) {
	tests := []struct {
		name string
		dims Dimensions
		want string
	}{
		{
			name: "standard board batch",
			dims: Dimensions{ThicknessMM: 25, WidthMM: 100, LengthM: 6, Count: 100},
			want: "1.5000",
		},
		{
			name: "thick beam batch",
			dims: Dimensions{ThicknessMM: 50, WidthMM: 150, LengthM: 4, Count: 200},
			want: "6.0000",
		},
		{
			name: "zero thickness means not measured",
			dims: Dimensions{ThicknessMM: 0, WidthMM: 100, LengthM: 6, Count: 100},
			want: "0.0000",
		},
		{
			name: "zero count means not measured",
			dims: Dimensions{ThicknessMM: 25, WidthMM: 100, LengthM: 6, Count: 0},
			want: "0.0000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dims.Volume().String())
		})
	}
}

func TestDimensions_Weight(t *testing.T) {
	dims := Dimensions{ThicknessMM: 25, WidthMM: 100, LengthM: 6, Count: 100, Density: 0.6}
	assert.InDelta(t, 0.9, dims.Weight(), 1e-9)

	empty := Dimensions{Density: 0.6}
	assert.Zero(t, empty.Weight())
}

func TestStatus_TransitionChain(t *testing.T) {
	chain := []Status{StatusPurchased, StatusArriving, StatusInWarehouse, StatusProcessing, StatusDeparting, StatusSold}
	for i := 0; i < len(chain)-1; i++ {
		assert.True(t, chain[i].CanTransitionTo(chain[i+1]), "%s -> %s", chain[i], chain[i+1])
	}

	// Backward moves and jumps are rejected.
	assert.False(t, StatusInWarehouse.CanTransitionTo(StatusArriving))
	assert.False(t, StatusPurchased.CanTransitionTo(StatusSold))
	assert.False(t, StatusArriving.CanTransitionTo(StatusDeparting))

	// Cancellation from any non-terminal state.
	for _, s := range chain[:len(chain)-1] {
		assert.True(t, s.CanTransitionTo(StatusCancelled), "%s -> cancelled", s)
	}

	// Terminal states stay terminal.
	assert.False(t, StatusSold.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusPurchased))
	assert.True(t, StatusSold.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestLot_ApplyAggregates(t *testing.T) {
	lot := NewLot(Dimensions{ThicknessMM: 25, WidthMM: 100, LengthM: 6, Count: 100})

	lot.ApplyAggregates(types.MustMoney("4500"), types.MustMoney("1000"), types.MustMoney("9000"))
	assert.Equal(t, "3500", lot.NetProfit.String())
	assert.Equal(t, "77.8", lot.ProfitPercent.Round(1).String())

	// Zero cost never divides.
	lot.ApplyAggregates(types.Zero(), types.MustMoney("100"), types.MustMoney("50"))
	assert.Equal(t, "-50", lot.NetProfit.String())
	assert.True(t, lot.ProfitPercent.IsZero())
}
