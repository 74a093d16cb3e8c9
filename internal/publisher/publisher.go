// Package publisher defines the outbound event publishing contract.
package publisher

import "context"

// Publisher pushes harvest notifications to an external system.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
