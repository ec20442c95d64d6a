package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBufferWraps(t *testing.T) {
	r := newRingBuffer(3)
	assert.Empty(t, r.values())

	r.push(1)
	r.push(2)
	assert.Equal(t, []float64{1, 2}, r.values())

	r.push(3)
	r.push(4)
	r.push(5)
	assert.Equal(t, []float64{3, 4, 5}, r.values())
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	r := newRingBuffer(0)
	r.push(7)
	r.push(8)
	assert.Equal(t, []float64{8}, r.values())
}

func TestHistorySeries(t *testing.T) {
	h := NewHistory(2)
	h.Push(1, 0, 10)
	h.Push(1, 0, 20)
	h.Push(1, 0, 30)
	h.Push(1, -1, 50)
	h.Push(2, 0, 99)

	assert.Equal(t, []float64{20, 30}, h.Series(1, 0))
	assert.Equal(t, []float64{50}, h.Mean(1))
	assert.Equal(t, []float64{99}, h.Series(2, 0))
	assert.Nil(t, h.Series(3, 0))
}

func TestHistoryDefaultSize(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < DefaultHistorySize+5; i++ {
		h.Push(1, 0, float64(i))
	}
	assert.Len(t, h.Series(1, 0), DefaultHistorySize)
}
