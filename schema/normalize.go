package schema

import (
	"errors"
	"strings"
)

// ErrInvalidWorkspace indicates an invalid workspace identifier.
var ErrInvalidWorkspace = errors.New("invalid workspace")

// ValidateWorkspaceID ensures a workspace id matches [a-z0-9._-] with no normalization.
func ValidateWorkspaceID(id WorkspaceID) error {
	raw := string(id)
	if raw == "" {
		return ErrInvalidWorkspace
	}
	if strings.TrimSpace(raw) != raw {
		return ErrInvalidWorkspace
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidWorkspace
	}
	return nil
}

// NormalizeOrientation accepts the canonical names plus the common
// tmux-style aliases ("h"/"v", "row"/"column").
func NormalizeOrientation(value string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "horizontal", "h", "row":
		return OrientationHorizontal, nil
	case "vertical", "v", "column":
		return OrientationVertical, nil
	default:
		return "", ErrInvalidOrientation
	}
}
