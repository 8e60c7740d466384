package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMetres(t *testing.T) {
	var loc = map[string]struct{ lat, lon float64 }{
		"nyc":    {40.700000, -74.100000},
		"philly": {40.000000, -75.200000},
		"sf":     {37.800000, -122.500000},
		"la":     {34.000000, -118.500000},
		"sto":    {59.300000, 17.900000},
		"lon":    {51.500000, -0.200000},
		"rey":    {64.100000, -21.900000},
	}

	dist := func(a, b string) float64 {
		return haversineMetres(loc[a].lat, loc[a].lon, loc[b].lat, loc[b].lon)
	}

	assert.InDelta(t, 121438.585, dist("nyc", "philly"), 1)
	assert.InDelta(t, 4127311.071, dist("nyc", "sf"), 1)
	assert.InDelta(t, 3951861.367, dist("nyc", "la"), 1)
	assert.InDelta(t, 6318636.281, dist("nyc", "sto"), 1)
	assert.InDelta(t, 5572804.939, dist("nyc", "lon"), 1)
	assert.InDelta(t, 4209275.847, dist("nyc", "rey"), 1)
	assert.InDelta(t, 555165.790, dist("sf", "la"), 1)
	assert.InDelta(t, 1882845.837, dist("lon", "rey"), 1)
}
