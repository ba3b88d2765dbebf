package qrcode

import (
	"encoding/base64"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"

	"eventcheckin/internal/domain"
)

// DefaultSize is the side of the rendered PNG in pixels.
const DefaultSize = 300

const dataURLPrefix = "data:image/png;base64,"

type pngEncoder struct {
	size int
}

// NewEncoder returns a QREncoder that renders square PNG data URLs at the
// highest recovery level (about 30% of the symbol may be damaged).
func NewEncoder(size int) domain.QREncoder {
	if size <= 0 {
		size = DefaultSize
	}
	return &pngEncoder{size: size}
}

func (e *pngEncoder) Encode(token string) (string, error) {
	code, err := goqrcode.New(token, goqrcode.Highest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}
	png, err := code.PNG(e.size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}
