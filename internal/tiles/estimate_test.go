package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDiskUsage(t *testing.T) {
	tests := []struct {
		count    int
		avg      float64
		expected string
	}{
		{0, 25, "0 MB"},
		{1, 25, "25.00 KB"},
		{40, 25, "1000.00 KB"},
		{41, 25, "1.00 MB"},
		{1000, 25, "24.41 MB"},
		{41944, 25, "1.00 GB"},
		{100000, 25, "2.38 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatDiskUsage(tt.count, tt.avg), "count=%d", tt.count)
	}
}

func TestEstimateFor(t *testing.T) {
	est := EstimateFor(box(-10, -10, 10, 10), []int{0, 1}, 0)
	assert.Equal(t, 5, est.TileCount)
	assert.Equal(t, "125.00 KB", est.DiskUsage)
	assert.Equal(t, int64(5*25*1024), est.Bytes)
}
