package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractCat handles ODT and RTF through the cat library, which detects the
// format from the bytes.
func extractCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract document: %w", err)
	}
	return text, nil
}
