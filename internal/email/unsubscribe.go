package email

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// UnsubscribeURL is deterministic in (user, alert) so repeated digests share one link.
func UnsubscribeURL(siteURL string, userID, alertID uuid.UUID) string {
	q := url.Values{}
	q.Set("user", userID.String())
	q.Set("alert", alertID.String())
	return strings.TrimRight(siteURL, "/") + "/unsubscribe?" + q.Encode()
}
