package domain

import "strings"

// QRSeparator splits the reference from the serial in a scanned label.
const QRSeparator = "|"

// ParseQR extracts the item key from a scanned payload in the form
// REFERENCE|SERIAL, e.g. "OG971390|202630010002".
func ParseQR(content string) (Key, error) {
	parts := strings.Split(content, QRSeparator)
	if len(parts) != 2 {
		return Key{}, &ValidationError{Field: "qrContent", Input: content, Reason: "expected REFERENCE|SERIAL"}
	}

	ref := strings.TrimSpace(parts[0])
	serial := strings.TrimSpace(parts[1])
	if ref == "" || serial == "" {
		return Key{}, &ValidationError{Field: "qrContent", Input: content, Reason: "reference and serial must not be empty"}
	}

	return Key{Reference: ref, Serial: serial}, nil
}
