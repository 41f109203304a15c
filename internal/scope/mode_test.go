package scope

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/vectorscope/internal/overlay"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want DisplayMode
	}{
		{"vector", VectorScope},
		{"VectorScope", VectorScope},
		{" parade ", RGBParade},
		{"rgb", RGBParade},
		{"split", Split},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got.String())
		})
	}

	_, err := ParseMode("waveform")
	assert.Error(t, err)
}

func TestLayout(t *testing.T) {
	size := image.Pt(801, 600)

	vs := Layout(VectorScope, size)
	require.Len(t, vs, 1)
	assert.Equal(t, image.Rect(0, 0, 801, 600), vs[0].Viewport)
	assert.Equal(t, overlay.VectorLayer, vs[0].Layer)

	split := Layout(Split, size)
	require.Len(t, split, 2)
	assert.Equal(t, image.Rect(0, 0, 400, 600), split[0].Viewport)
	assert.Equal(t, overlay.VectorLayer, split[0].Layer)
	assert.Equal(t, image.Rect(400, 0, 801, 600), split[1].Viewport)
	assert.Equal(t, overlay.ParadeLayer, split[1].Layer)

	// a one-pixel-wide split has no room for the vector half
	narrow := Layout(Split, image.Pt(1, 10))
	require.Len(t, narrow, 1)
	assert.Equal(t, overlay.ParadeLayer, narrow[0].Layer)
}

func TestMailboxKeepsLatest(t *testing.T) {
	var dropped []int
	m := NewMailbox(func(v int) { dropped = append(dropped, v) })

	_, ok := m.Take()
	assert.False(t, ok)

	m.Put(1)
	m.Put(2)
	m.Put(3)
	v, ok := m.Take()
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, []int{1, 2}, dropped)

	_, ok = m.Take()
	assert.False(t, ok)
}

func TestMailboxConcurrentPut(t *testing.T) {
	m := NewMailbox[int](nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Put(i*100 + j)
			}
		}(i)
	}
	wg.Wait()

	_, ok := m.Take()
	assert.True(t, ok)
	_, ok = m.Take()
	assert.False(t, ok)
}
