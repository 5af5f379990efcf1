package qr

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 512

// PNG renders the token as a black-on-white QR code PNG. Size is in pixels;
// zero or negative falls back to the default.
func PNG(token string, size int) ([]byte, error) {
	if token == "" {
		return nil, errors.New("empty qr token")
	}

	if size <= 0 {
		size = defaultSize
	}

	return qrcode.Encode(token, qrcode.Medium, size)
}
