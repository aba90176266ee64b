package tui

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"

	"github.com/qeesung/image2ascii/convert"
)

// renderFrame decodes a JPEG frame and converts it to colored ASCII art of
// the given size in cells.
func renderFrame(data []byte, width, height int) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode frame: %w", err)
	}
	return convertToASCII(img, width, height), nil
}

func convertToASCII(img image.Image, targetWidth, targetHeight int) string {
	converter := convert.NewImageConverter()

	opts := convert.DefaultOptions
	opts.FixedWidth = targetWidth
	opts.FixedHeight = targetHeight
	opts.FitScreen = false
	opts.Colored = true
	opts.Ratio = 0.5 // terminal cells are about twice as tall as wide

	return converter.Image2ASCIIString(img, &opts)
}
