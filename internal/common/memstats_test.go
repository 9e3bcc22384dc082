package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMemoryStats(t *testing.T) {
	stats := GetMemoryStats()
	assert.Positive(t, stats.Alloc)
	assert.Positive(t, stats.TotalAlloc)
	assert.Positive(t, stats.Sys)

	str := stats.String()
	assert.Contains(t, str, "Alloc:")
	assert.Contains(t, str, "KB")
}

func TestMemoryStatsString(t *testing.T) {
	s := MemoryStats{Alloc: 2048, TotalAlloc: 4096, Sys: 8192, NumGC: 3, GCCPUFraction: 0.015}
	assert.Equal(t, "Alloc: 2 KB, Total: 4 KB, Sys: 8 KB, GC: 3 (1.50% CPU)", s.String())
}
