// Package notify delivers export links to registered recipients.
package notify

import "context"

// Notifier delivers a redemption URL to a recipient. Delivery failure never
// corrupts core state; the caller revokes the link as compensation.
type Notifier interface {
	// SendLink delivers the download link for a user's export covering the
	// given period. The passcode travels by a different channel.
	SendLink(ctx context.Context, recipient string, userID int64, link, period string) error
}
