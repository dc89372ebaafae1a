package order

import (
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/skip2/go-qrcode"
)

type QRGenerator interface {
	Generate(orderID uuid.UUID) ([]byte, error)
}

// LinkQRGenerator encodes a link to the page where the order's dishes can be rated.
type LinkQRGenerator struct {
	BaseURL string
	Size    int
}

func (g LinkQRGenerator) Link(orderID uuid.UUID) string {
	return fmt.Sprintf("%s/order/%s/rating", strings.TrimRight(g.BaseURL, "/"), orderID)
}

func (g LinkQRGenerator) Generate(orderID uuid.UUID) ([]byte, error) {
	size := g.Size
	if size == 0 {
		size = 256
	}
	png, err := qrcode.Encode(g.Link(orderID), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: failed to encode link for order %s: %w", orderID, err)
	}
	return png, nil
}
