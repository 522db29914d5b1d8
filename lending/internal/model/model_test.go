package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookhive/lending-service/lending/internal/model"
)

func TestStock_Adjust(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		quantity      int
		delta         int
		wantQuantity  int
		wantAvailable bool
	}{
		{name: "increase", quantity: 0, delta: 1, wantQuantity: 1, wantAvailable: true},
		{name: "decrease to zero", quantity: 1, delta: -1, wantQuantity: 0, wantAvailable: false},
		{name: "floor at zero", quantity: 0, delta: -1, wantQuantity: 0, wantAvailable: false},
		{name: "floor swallows large negative", quantity: 2, delta: -5, wantQuantity: 0, wantAvailable: false},
		{name: "bulk restock", quantity: 3, delta: 4, wantQuantity: 7, wantAvailable: true},
		{name: "noop keeps availability", quantity: 2, delta: 0, wantQuantity: 2, wantAvailable: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := model.Stock{Quantity: tt.quantity}
			s.Adjust(tt.delta)
			require.Equal(t, tt.wantQuantity, s.Quantity)
			require.Equal(t, tt.wantAvailable, s.IsAvailable)
			require.Equal(t, s.Quantity > 0, s.IsAvailable)
		})
	}
}

func TestStock_UpdateAvailability(t *testing.T) {
	t.Parallel()

	s := model.Stock{Quantity: 5, IsAvailable: false}
	s.UpdateAvailability()
	require.True(t, s.IsAvailable)

	s.Quantity = 0
	s.UpdateAvailability()
	require.False(t, s.IsAvailable)
}

func TestStock_IncreaseDecrease(t *testing.T) {
	t.Parallel()

	var s model.Stock
	s.Increase()
	require.Equal(t, model.Stock{Quantity: 1, IsAvailable: true}, s)
	s.Decrease()
	require.Equal(t, model.Stock{Quantity: 0, IsAvailable: false}, s)
	s.Decrease()
	require.Equal(t, model.Stock{Quantity: 0, IsAvailable: false}, s)
}
