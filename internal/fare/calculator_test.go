package fare

import (
	"math"
	"sync"
	"testing"

	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/stretchr/testify/assert"
)

func defaultPricing() models.Pricing {
	return models.DefaultSettings().Pricing()
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		duration float64
		want     Breakdown
	}{
		{
			name:     "ten miles twenty minutes",
			distance: 10,
			duration: 20,
			want:     Breakdown{BaseFare: 21, FinalFare: 21, PlatformFee: 4.2, DriverEarning: 16.8},
		},
		{
			name:     "short trip hits minimum fare",
			distance: 1,
			duration: 2,
			want:     Breakdown{BaseFare: 2.1, FinalFare: 5, PlatformFee: 1, DriverEarning: 4},
		},
		{
			name: "zero trip",
			want: Breakdown{BaseFare: 0, FinalFare: 5, PlatformFee: 1, DriverEarning: 4},
		},
		{
			name:     "fractional amounts round to cents",
			distance: 3.3,
			duration: 7,
			want:     Breakdown{BaseFare: 7.05, FinalFare: 7.05, PlatformFee: 1.41, DriverEarning: 5.64},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.distance, tt.duration, defaultPricing())
			assert.InDelta(t, tt.want.BaseFare, got.BaseFare, 0.001)
			assert.InDelta(t, tt.want.FinalFare, got.FinalFare, 0.001)
			assert.InDelta(t, tt.want.PlatformFee, got.PlatformFee, 0.001)
			assert.InDelta(t, tt.want.DriverEarning, got.DriverEarning, 0.001)
		})
	}
}

func TestCalculate_InvalidInputsCountAsZero(t *testing.T) {
	zero := Calculate(0, 0, defaultPricing())

	for _, v := range []float64{-5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.Equal(t, zero, Calculate(v, v, defaultPricing()))
	}
}

func TestCalculate_Invariants(t *testing.T) {
	pricings := []models.Pricing{
		defaultPricing(),
		{PlatformFeePercent: 0, MinimumFare: 0, BaseRatePerMile: 2, BaseRatePerMinute: 0.5},
		{PlatformFeePercent: 100, MinimumFare: 12.5, BaseRatePerMile: 1.1, BaseRatePerMinute: 0.17},
		{PlatformFeePercent: 33.3, MinimumFare: 3, BaseRatePerMile: 0.99, BaseRatePerMinute: 0.01},
	}
	trips := [][2]float64{{0, 0}, {0.4, 1}, {2.5, 9}, {17.77, 41}, {120, 180}}

	for _, p := range pricings {
		for _, trip := range trips {
			b := Calculate(trip[0], trip[1], p)

			assert.GreaterOrEqual(t, b.FinalFare, Round(p.MinimumFare))
			assert.GreaterOrEqual(t, b.FinalFare, b.BaseFare)
			assert.InDelta(t, b.FinalFare, b.PlatformFee+b.DriverEarning, 0.011)
			assert.GreaterOrEqual(t, b.PlatformFee, 0.0)
			assert.GreaterOrEqual(t, b.DriverEarning, 0.0)
		}
	}
}

func TestCalculate_Monotonic(t *testing.T) {
	p := defaultPricing()
	prev := Calculate(0, 0, p).FinalFare
	for d := 0.5; d <= 50; d += 0.5 {
		cur := Calculate(d, 10, p).FinalFare
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestCalculate_ConcurrentUse(t *testing.T) {
	p := defaultPricing()
	want := Calculate(10, 20, p)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, Calculate(10, 20, p))
		}()
	}
	wg.Wait()
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.01, Round(1.005000001))
	assert.Equal(t, 2.0, Round(1.999))
	assert.Equal(t, -1.5, Round(-1.5))
}
