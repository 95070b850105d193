// Package mask maps opaque per-backend stream identifiers ("mask codes")
// to the anonymous provider labels shown to users.
package mask

// Mask codes as issued by the backend. The real model identity behind each
// code is never exposed to the client.
const (
	Alpha   = "ALPHA"
	Bravo   = "BRAVO"
	Charlie = "CHARLIE"
	Delta   = "DELTA"
)

// Ordered is the canonical display order for providers. Answer lists are
// sorted by this order, not by stream completion order.
var Ordered = []string{Alpha, Bravo, Charlie, Delta}

// providerByMask maps mask codes to display provider ids.
var providerByMask = map[string]string{
	Alpha:   "A",
	Bravo:   "B",
	Charlie: "C",
	Delta:   "D",
}

// ProviderID returns the display label for a mask code. Unknown codes fall
// back to the code's first rune so a misconfigured backend still renders.
func ProviderID(maskCode string) string {
	if id, ok := providerByMask[maskCode]; ok {
		return id
	}
	if maskCode == "" {
		return ""
	}
	return string([]rune(maskCode)[0])
}

// MaskCode returns the mask code for a display provider id, or "" if the
// label is not part of the registry.
func MaskCode(providerID string) string {
	for code, id := range providerByMask {
		if id == providerID {
			return code
		}
	}
	return ""
}

// OrderIndex returns the canonical position of a provider id, or a value
// past the end for unknown providers so they sort last.
func OrderIndex(providerID string) int {
	for i, code := range Ordered {
		if providerByMask[code] == providerID {
			return i
		}
	}
	return len(Ordered)
}
