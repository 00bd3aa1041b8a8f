package files

import (
	"embed"
	"fmt"

	"cotpulse/pkg/contracts/domain"
)

//go:embed defaults/*.csv
var bundled embed.FS

// DefaultDataset returns the bundled text for kind.
func DefaultDataset(kind domain.DatasetKind) (string, error) {
	raw, err := bundled.ReadFile("defaults/" + string(kind) + ".csv")
	if err != nil {
		return "", fmt.Errorf("no bundled %s dataset: %w", kind, err)
	}
	return string(raw), nil
}
