// Package qrcode renders order QR codes as PNG data URIs.
package qrcode

import (
	"encoding/base64"

	"github.com/go-faster/errors"
	qr "github.com/skip2/go-qrcode"
)

const dataURIPrefix = "data:image/png;base64,"

// Renderer encodes text into a QR code image.
type Renderer struct {
	size  int
	level qr.RecoveryLevel
}

// New returns a Renderer producing size×size pixel images.
func New(size int) *Renderer {
	if size <= 0 {
		size = 256
	}
	return &Renderer{size: size, level: qr.Medium}
}

// Render returns content encoded as a base64 PNG data URI.
func (r *Renderer) Render(content string) (string, error) {
	png, err := qr.Encode(content, r.level, r.size)
	if err != nil {
		return "", errors.Wrap(err, "encode qr code")
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}
