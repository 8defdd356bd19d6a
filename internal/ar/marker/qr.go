package marker

import (
	"fmt"
	"image"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/banshee-data/marker.place/internal/monitoring"
)

// QRRecognizer decodes at most one QR code per image.
type QRRecognizer struct {
	reader gozxing.Reader
}

// NewQRRecognizer creates a QR code recognizer.
func NewQRRecognizer() *QRRecognizer {
	return &QRRecognizer{reader: qrcode.NewQRCodeReader()}
}

// Recognize returns the decoded QR code, if any. Images with no readable
// code yield no results and no error.
func (q *QRRecognizer) Recognize(img image.Image) ([]Result, error) {
	if img == nil {
		return nil, nil
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("binarize image: %w", err)
	}

	res, err := q.reader.Decode(bmp, nil)
	if err != nil {
		// Not-found, checksum and format failures all mean no usable
		// marker in this image.
		monitoring.Tracef("qr decode: %v", err)
		return nil, nil
	}

	if format := res.GetBarcodeFormat(); format != gozxing.BarcodeFormat_QR_CODE {
		return []Result{Unsupported{Kind: fmt.Sprintf("%v", format)}}, nil
	}

	return []Result{Barcode{Observation{
		Payload:    res.GetText(),
		Confidence: 1,
		Region:     regionOf(res.GetResultPoints()),
	}}}, nil
}

func regionOf(points []gozxing.ResultPoint) *Region {
	if len(points) == 0 {
		return nil
	}
	r := &Region{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, p := range points {
		r.MinX = math.Min(r.MinX, p.GetX())
		r.MinY = math.Min(r.MinY, p.GetY())
		r.MaxX = math.Max(r.MaxX, p.GetX())
		r.MaxY = math.Max(r.MaxY, p.GetY())
	}
	return r
}
