package camera

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
)

// testPattern renders a diagonal gradient. The back lens is tinted blue, the
// front lens green; flash lifts the whole frame. seq shifts the gradient so
// consecutive live frames differ.
func testPattern(width, height int, facing Facing, flash FlashMode, seq int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	boost := 0
	if flash == FlashOn {
		boost = 80
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := ((x+y+seq*4)*255/(width+height) + boost) % 256
			c := color.RGBA{R: clamp(v / 3), G: clamp(v / 2), B: clamp(v), A: 255}
			if facing == FacingFront {
				c.G, c.B = c.B, c.G
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func clamp(v int) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
