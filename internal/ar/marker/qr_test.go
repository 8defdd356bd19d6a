package marker

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRRecognizer_DecodesPayload(t *testing.T) {
	img, err := qrcode.NewQRCodeWriter().Encode("target_1", gozxing.BarcodeFormat_QR_CODE, 240, 240, nil)
	require.NoError(t, err)

	results, err := NewQRRecognizer().Recognize(img)
	require.NoError(t, err)
	require.Len(t, results, 1)

	b, ok := results[0].(Barcode)
	require.True(t, ok, "expected a Barcode, got %T", results[0])
	assert.Equal(t, "target_1", b.Payload)
	assert.Equal(t, 1.0, b.Confidence)
	require.NotNil(t, b.Region)
	assert.Less(t, b.Region.MinX, b.Region.MaxX)
}

func TestQRRecognizer_BlankImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 120, 120))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	results, err := NewQRRecognizer().Recognize(img)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQRRecognizer_NilImage(t *testing.T) {
	results, err := NewQRRecognizer().Recognize(nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
