// Package imaging provides image encoding helpers for the render and AI
// gateway layers.
package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
)

// EncodeJPEGDataURI encodes img as a JPEG data URI at the given quality.
// Used for page thumbnails where lossy compression is acceptable.
func EncodeJPEGDataURI(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodePNGDataURI encodes img as a lossless PNG data URI. Crops feed
// downstream vision calls, so lossy recompression is not an option here.
func EncodePNGDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CleanBase64 strips an optional data URI prefix ("data:...;base64,") from
// a base64 payload, returning the raw encoded bytes.
func CleanBase64(b64 string) string {
	if idx := strings.IndexByte(b64, ','); idx >= 0 {
		return b64[idx+1:]
	}
	return b64
}
