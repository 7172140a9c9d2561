package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"
)

// GenerateImage creates a synthetic RGBA image with a light background and a
// dark rectangle, enough structure for upload and overlay tests.
func GenerateImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 240, G: 240, B: 240, A: 255}}, image.Point{}, draw.Src)

	box := image.Rect(width/4, height/4, 3*width/4, 3*height/4)
	draw.Draw(img, box, &image.Uniform{C: color.RGBA{R: 40, G: 40, B: 40, A: 255}}, image.Point{}, draw.Src)
	return img
}

// JPEGBytes encodes an image as JPEG.
func JPEGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// MultipartImage builds a multipart/form-data body with a single JPEG image
// field, as the upload endpoint expects.
func MultipartImage(t *testing.T, field, fileName string, img image.Image) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = part.Write(JPEGBytes(t, img))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}
