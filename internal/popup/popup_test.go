package popup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foodmap/foodmap/pkg/model"
)

func TestFormatDiscount(t *testing.T) {
	cases := []struct {
		name    string
		product model.Product
		want    string
	}{
		{
			name:    "discount rate wins",
			product: model.Product{DiscountRate: 0.8, Price: 100, FinalPrice: 50},
			want:    "20% OFF",
		},
		{
			name:    "derived from sale and list price",
			product: model.Product{Price: 200, FinalPrice: 150},
			want:    "25% OFF",
		},
		{
			name:    "sale price only",
			product: model.Product{FinalPrice: 39},
			want:    "特價 $39",
		},
		{
			name:    "sale price keeps cents",
			product: model.Product{FinalPrice: 39.5},
			want:    "特價 $39.5",
		},
		{
			name:    "nothing usable",
			product: model.Product{},
			want:    "特價中",
		},
		{
			name:    "rate of one is not a discount",
			product: model.Product{DiscountRate: 1},
			want:    "特價中",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatDiscount(tc.product))
		})
	}
}

func TestMapsURLFallbackOrder(t *testing.T) {
	withCoords := model.Product{Latitude: 25.04, Longitude: 121.56, Address: "台北市信義區"}
	assert.Equal(t, "https://www.google.com/maps?q=25.04,121.56", MapsURL(withCoords))
	assert.Equal(t, "https://www.google.com/maps/dir/?api=1&destination=25.04,121.56", DirectionsURL(withCoords))

	addrOnly := model.Product{Address: "台北市信義區 松高路 1 號"}
	assert.Contains(t, MapsURL(addrOnly), "https://www.google.com/maps?q=")
	assert.NotContains(t, MapsURL(addrOnly), " ")

	assert.Equal(t, "https://www.google.com/maps", MapsURL(model.Product{}))
	assert.Equal(t, "https://www.google.com/maps", DirectionsURL(model.Product{}))
}

func TestShowHideTransitions(t *testing.T) {
	p := New(zap.NewNop())

	var states []State
	p.OnChange(func(st State) { states = append(states, st) })

	p.Show(model.Product{ProductID: 7, Name: "奶茶", DiscountRate: 0.7})
	require.True(t, p.Visible())
	require.Len(t, states, 1)
	assert.Equal(t, "30% OFF", states[0].Badge)
	require.NotNil(t, states[0].Product)
	assert.Equal(t, int64(7), states[0].Product.ProductID)

	p.Hide()
	assert.False(t, p.Visible())
	require.Len(t, states, 2)
	assert.False(t, states[1].Visible)
	assert.Nil(t, states[1].Product)
}

func TestShowReminderHasNoProduct(t *testing.T) {
	p := New(zap.NewNop())
	p.ShowReminder("晚上八點囉！")

	st := p.Current()
	assert.True(t, st.Visible)
	assert.True(t, st.Reminder)
	assert.Nil(t, st.Product)
}
