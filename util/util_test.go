package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetKeysSorted(t *testing.T) {
	assert.Equal(t, []string{"Bb", "C", "F"}, GetKeys(map[string]int{"F": 1, "C": 2, "Bb": 3}))
	assert.Empty(t, GetKeys(map[int]bool{}))
}

func TestMin(t *testing.T) {
	assert.Equal(t, 3, Min(3, 7))
	assert.Equal(t, uint8(2), Min(uint8(9), uint8(2)))
}

func TestSum(t *testing.T) {
	assert.Equal(t, uint64(10), Sum([]int{1, 2, 3, 4}))
	assert.Equal(t, uint64(0), Sum([]uint8(nil)))
}
