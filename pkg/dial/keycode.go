package dial

import (
	"fmt"
	"strconv"
)

// KeyCode is a SmartCenter remote control key code.
type KeyCode int

// Known key codes.
const (
	KeyActive                  KeyCode = 1012
	KeyVolumeSelectorIncrement KeyCode = 1016
	KeyVolumeSelectorDecrement KeyCode = 1017
	KeyActiveIdentifier        KeyCode = 1056
)

// String returns the key name, or the numeric code for unnamed keys.
func (k KeyCode) String() string {
	switch k {
	case KeyActive:
		return "ACTIVE"
	case KeyVolumeSelectorIncrement:
		return "VOLUME_SELECTOR_INCREMENT"
	case KeyVolumeSelectorDecrement:
		return "VOLUME_SELECTOR_DECREMENT"
	case KeyActiveIdentifier:
		return "ACTIVE_IDENTIFIER"
	default:
		return strconv.Itoa(int(k))
	}
}

// remotePayload is the body the SmartCenter app expects for one key press.
func remotePayload(k KeyCode) string {
	return fmt.Sprintf(`<remote><key code="%d"/></remote>`, int(k))
}
