package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

// Send shows a desktop notification. Failures are returned rather than
// logged so the caller decides whether they matter.
func Send(title, message string) error {
	if err := beeep.Notify(title, message, ""); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	return nil
}
