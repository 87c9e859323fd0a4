package vision

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"mammo-vision/internal/domain/entity"
)

func TestPadCrop_Interior(t *testing.T) {
	crop := PadCrop(image.Rect(100, 50, 200, 150), 640, 480)
	require.Equal(t, entity.CropRect{X: 90, Y: 40, Width: 120, Height: 120}, crop)
}

func TestPadCrop_ClipsToImage(t *testing.T) {
	crop := PadCrop(image.Rect(0, 0, 640, 480), 640, 480)
	require.Equal(t, entity.FullFrame(640, 480), crop)

	crop = PadCrop(image.Rect(590, 430, 640, 480), 640, 480)
	require.True(t, crop.Within(640, 480))
	require.Equal(t, 585, crop.X)
	require.Equal(t, 55, crop.Width)
}

func TestPadCrop_AlwaysInside(t *testing.T) {
	for x := 0; x < 100; x += 7 {
		for w := 1; x+w <= 100; w += 9 {
			crop := PadCrop(image.Rect(x, x/2, x+w, x/2+w/2+1), 100, 80)
			require.True(t, crop.Within(100, 80), "%+v", crop)
		}
	}
}
