package detect

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	overlaySafe   = color.RGBA{G: 255, A: 255}
	overlayDanger = color.RGBA{R: 255, A: 255}
)

// DrawOverlays renders detection boxes and labels onto a JPEG frame and
// returns the re-encoded JPEG. Dangerous detections are drawn in red.
func DrawOverlays(jpeg []byte, dets []Detection) ([]byte, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	for _, d := range dets {
		c := overlaySafe
		if d.Dangerous {
			c = overlayDanger
		}
		rect := image.Rect(int(d.Box[0]), int(d.Box[1]), int(d.Box[2]), int(d.Box[3]))
		gocv.Rectangle(&img, rect, c, 2)

		label := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
		origin := image.Pt(rect.Min.X, rect.Min.Y-10)
		gocv.PutText(&img, label, origin, gocv.FontHersheySimplex, 0.5, c, 2)
	}

	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// Placeholder renders a black frame with a status message, used by the
// video feed when the system is inactive or the camera has no frames.
func Placeholder(text string, c color.RGBA) []byte {
	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	gocv.PutText(&img, text, image.Pt(140, 240), gocv.FontHersheySimplex, 1, c, 2)

	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		return nil
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out
}
