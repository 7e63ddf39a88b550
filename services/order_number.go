package services

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront-service/models"

	"github.com/google/uuid"
)

const (
	DefaultOrderNumberPrefix = "NT"
	DefaultWhatsAppNumber    = "919876543210"
	base36Alphabet           = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// generateOrderNumber returns PREFIX-<base36 millis><3 random base36 chars>.
func generateOrderNumber(prefix string, now time.Time) string {
	random := uuid.New()
	var suffix [3]byte
	for i := range suffix {
		suffix[i] = base36Alphabet[int(random[i])%len(base36Alphabet)]
	}
	timestamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return fmt.Sprintf("%s-%s%s", prefix, timestamp, suffix[:])
}

// WhatsAppLinkBuilder builds the wa.me link a customer uses to message the
// store about an order.
type WhatsAppLinkBuilder struct {
	Number string
}

func (b WhatsAppLinkBuilder) Link(order *models.Order) string {
	number := b.Number
	if number == "" {
		number = DefaultWhatsAppNumber
	}
	text := fmt.Sprintf("Hi! I just placed order %s (total %s).", order.OrderNumber, order.Total.StringFixed(2))
	// wa.me expects %20 rather than + for spaces.
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", number, escaped)
}
