package notifications

import "github.com/house-of-holmes/social-alerts/internal/models"

// NotificationInterface defines the contract for digest delivery
type NotificationInterface interface {
	SendDigest(digest *models.Digest) error
}
