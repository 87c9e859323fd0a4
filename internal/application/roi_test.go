package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mammo-vision/internal/domain/entity"
)

type fakeFinder struct {
	box       *entity.BoundingBox
	threshold float64
	calls     int
}

func (f *fakeFinder) LargestRegion(_ *entity.Heatmap, threshold float64) (*entity.BoundingBox, bool) {
	f.calls++
	f.threshold = threshold
	return f.box, f.box != nil
}

func flatHeatmap(size int) *entity.Heatmap {
	return &entity.Heatmap{Width: size, Height: size, Values: make([]float64, size*size)}
}

func TestROIExtractor_UsesLargestRegion(t *testing.T) {
	finder := &fakeFinder{box: &entity.BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}}
	e := NewROIExtractor(finder, 224)

	box := e.Extract(flatHeatmap(224), 0.9)
	require.NotNil(t, box)
	require.Equal(t, entity.BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}, *box)
	require.Equal(t, ROIThreshold, finder.threshold)
}

func TestROIExtractor_ClipsToFrame(t *testing.T) {
	finder := &fakeFinder{box: &entity.BoundingBox{X: 200, Y: 210, Width: 50, Height: 50}}
	e := NewROIExtractor(finder, 224)

	box := e.Extract(flatHeatmap(224), 0.9)
	require.NotNil(t, box)
	require.Equal(t, entity.BoundingBox{X: 200, Y: 210, Width: 24, Height: 14}, *box)
	require.True(t, box.Within(224))
}

func TestROIExtractor_FallbackBox(t *testing.T) {
	e := NewROIExtractor(&fakeFinder{}, 224)

	box := e.Extract(flatHeatmap(224), 0.25)
	require.NotNil(t, box)
	require.Equal(t, entity.BoundingBox{X: 56, Y: 56, Width: 112, Height: 112}, *box)

	box = e.Extract(flatHeatmap(224), FallbackProbability)
	require.NotNil(t, box)
}

func TestROIExtractor_NoRegionLowProbability(t *testing.T) {
	e := NewROIExtractor(&fakeFinder{}, 224)
	require.Nil(t, e.Extract(flatHeatmap(224), 0.19))
	require.Nil(t, e.Extract(nil, 0))
}

func TestROIExtractor_NoHeatmapSkipsFinder(t *testing.T) {
	finder := &fakeFinder{box: &entity.BoundingBox{X: 1, Y: 1, Width: 2, Height: 2}}
	e := NewROIExtractor(finder, 224)

	box := e.Extract(nil, 0.6)
	require.Equal(t, 0, finder.calls)
	require.Equal(t, CenteredBox(224), box)
}
