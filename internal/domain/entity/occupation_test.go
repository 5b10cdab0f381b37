package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeBill(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		elapsed  time.Duration
		price    int64
		expected int64
	}{
		{"ninety minutes at two per hour", 90 * time.Minute, 200, 300},
		{"exact hour", time.Hour, 250, 250},
		{"half cent rounds up", 9 * time.Second, 200, 1},
		{"below half cent rounds down", 8 * time.Second, 200, 0},
		{"zero duration", 0, 200, 0},
		{"negative duration", -time.Minute, 200, 0},
		{"free parking", 3 * time.Hour, 0, 0},
		{"long stay", 49*time.Hour + 30*time.Minute, 175, 8663},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeBill(start, start.Add(tt.elapsed), tt.price))
		})
	}
}

func TestOccupation_Close(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	occ := &Occupation{State: OccupationActive, StartedAt: start, HourlyPriceCents: 200}

	assert.True(t, occ.IsOpen())

	occ.Close(start.Add(90 * time.Minute))

	assert.False(t, occ.IsOpen())
	assert.Equal(t, OccupationClosed, occ.State)
	if assert.NotNil(t, occ.BillCents) {
		assert.Equal(t, int64(300), *occ.BillCents)
	}
}
