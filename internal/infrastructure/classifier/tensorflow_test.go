//go:build tensorflow
// +build tensorflow

package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"
	tf "github.com/tensorflow/tensorflow/tensorflow/go"

	"mammo-vision/internal/domain/entity"
)

func TestToBatch_HWCLayout(t *testing.T) {
	in := entity.NewInputImage(2)
	for i := range in.Pixels {
		in.Pixels[i] = float32(i)
	}

	batch := toBatch(in)
	require.Len(t, batch, 1)
	require.Len(t, batch[0], 2)
	require.Len(t, batch[0][0], 2)
	// пиксель (y=1, x=0) начинается с индекса (1*2+0)*3
	require.Equal(t, []float32{6, 7, 8}, batch[0][1][0])
	require.Equal(t, []float32{9, 10, 11}, batch[0][1][1])

	tensor, err := tf.NewTensor(batch)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 2, 3}, tensor.Shape())
}

func TestToFeatureMap_RoundTrip(t *testing.T) {
	value := [][][][]float32{{
		{{1, 2}, {3, 4}, {5, 6}},
		{{7, 8}, {9, 10}, {11, 12}},
	}}
	tensor, err := tf.NewTensor(value)
	require.NoError(t, err)

	fm, err := toFeatureMap(tensor)
	require.NoError(t, err)
	require.Equal(t, 2, fm.Height)
	require.Equal(t, 3, fm.Width)
	require.Equal(t, 2, fm.Channels)
	require.NoError(t, fm.Validate())
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			for c := 0; c < 2; c++ {
				require.Equal(t, value[0][y][x][c], fm.At(y, x, c))
			}
		}
	}
}

func TestToFeatureMap_WrongRank(t *testing.T) {
	tensor, err := tf.NewTensor([][]float32{{0.7}})
	require.NoError(t, err)

	_, err = toFeatureMap(tensor)
	require.Error(t, err)
}
