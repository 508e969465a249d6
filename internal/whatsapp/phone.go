package whatsapp

import "strings"

const (
	// DefaultCountryPrefix is used when no CountryPrefix setting is
	// configured.
	DefaultCountryPrefix = "92"

	localTrunkDigit = "0"
	addressSuffix   = "@c.us"
)

// NormalizeDestination turns a workshop-entered phone number into a transport
// address using the default country prefix: non-digits stripped, a leading
// trunk zero replaced with the prefix, the prefix prepended when absent.
//
//	"0300-1234567"  -> "923001234567@c.us"
//	"3001234567"    -> "923001234567@c.us"
//	"923001234567"  -> "923001234567@c.us"
func NormalizeDestination(phone string) string {
	return NormalizeDestinationWithPrefix(phone, DefaultCountryPrefix)
}

// NormalizeDestinationWithPrefix is NormalizeDestination with the country
// prefix taken from the CountryPrefix setting. An empty prefix falls back
// to the default.
func NormalizeDestinationWithPrefix(phone, prefix string) string {
	if prefix == "" {
		prefix = DefaultCountryPrefix
	}
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, localTrunkDigit):
		digits = prefix + digits[len(localTrunkDigit):]
	case !strings.HasPrefix(digits, prefix):
		digits = prefix + digits
	}
	return digits + addressSuffix
}
