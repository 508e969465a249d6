package whatsapp

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

const pairingImageSize = 256

// renderPairingImage renders a pairing code into a PNG data URL that the
// frontend can drop into an <img> tag.
func renderPairingImage(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, pairingImageSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
