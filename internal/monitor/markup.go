package monitor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"

	"home-sentinel/internal/imaging"
)

const (
	// bracketWidth is the stroke width of the corner brackets.
	bracketWidth = 5
	// bracketLength is the arm length of the corner brackets.
	bracketLength = 60
)

var markupColor = color.RGBA{R: 255, A: 255}

// MarkupImage copies the frame and draws corner brackets plus a label for
// every prediction region.
func MarkupImage(src image.Image, predictions []imaging.Prediction) image.Image {
	marked := image.NewRGBA(src.Bounds())
	draw.Draw(marked, marked.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, prediction := range predictions {
		drawBrackets(marked, prediction)
		drawLabel(marked, prediction)
	}

	return marked
}

// drawBrackets outlines the region's four corners.
func drawBrackets(img *image.RGBA, p imaging.Prediction) {
	// Horizontal arms.
	fillRect(img, p.XMin, p.YMin, p.XMin+bracketLength, p.YMin+bracketWidth)
	fillRect(img, p.XMax-bracketLength, p.YMin, p.XMax, p.YMin+bracketWidth)
	fillRect(img, p.XMin, p.YMax-bracketWidth, p.XMin+bracketLength, p.YMax)
	fillRect(img, p.XMax-bracketLength, p.YMax-bracketWidth, p.XMax, p.YMax)

	// Vertical arms.
	fillRect(img, p.XMin, p.YMin, p.XMin+bracketWidth, p.YMin+bracketLength)
	fillRect(img, p.XMax-bracketWidth, p.YMin, p.XMax, p.YMin+bracketLength)
	fillRect(img, p.XMin, p.YMax-bracketLength, p.XMin+bracketWidth, p.YMax)
	fillRect(img, p.XMax-bracketWidth, p.YMax-bracketLength, p.XMax, p.YMax)
}

// fillRect paints the rectangle clipped to the image bounds.
func fillRect(img *image.RGBA, x0, y0, x1, y1 int) {
	rect := image.Rect(x0, y0, x1, y1).Intersect(img.Bounds())
	draw.Draw(img, rect, image.NewUniform(markupColor), image.Point{}, draw.Src)
}

// drawLabel writes "label - confidence" just above the region.
func drawLabel(img *image.RGBA, p imaging.Prediction) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(markupColor),
		Face: inconsolata.Bold8x16,
		Dot:  fixed.Point26_6{X: fixed.I(p.XMin), Y: fixed.I(p.YMin - 3)},
	}

	drawer.DrawString(fmt.Sprintf("%s - %.03f", p.Label, p.Confidence))
}
