package services

import (
	"github.com/dealflow/backend/internal/models"
)

// Display-status derivation: an ordered rule list evaluated top to bottom,
// first match wins. The precedence (Draft > Deleted > Rejected > Accepted >
// Rejected-Countered > In Review > Viewed > Sent) is load-bearing: viewed
// flags must never override "Offer in Review".
type displayRule struct {
	when  func(o *models.Offer, viewerRole string) bool
	label func(o *models.Offer, viewerRole string) string
}

func fixed(s string) func(*models.Offer, string) string {
	return func(*models.Offer, string) string { return s }
}

func statusIs(status string) func(*models.Offer, string) bool {
	return func(o *models.Offer, _ string) bool { return o.Status == status }
}

var displayRules = []displayRule{
	{statusIs(models.OfferStatusDraft), fixed("Draft")},
	{statusIs(models.OfferStatusDeleted), fixed("Offer Deleted")},
	{statusIs(models.OfferStatusRejected), fixed("Offer Rejected")},
	{statusIs(models.OfferStatusAccepted), fixed("Offer Accepted")},
	{statusIs(models.OfferStatusRejectedCountered), fixed("Offer Rejected-Countered")},
	{statusIs(models.OfferStatusInReview), fixed("Offer in Review")},
	{
		when: func(o *models.Offer, _ string) bool {
			return o.Status == models.OfferStatusSent && receiverViewed(o)
		},
		label: func(o *models.Offer, _ string) string {
			return "Viewed by " + receiverRole(o)
		},
	},
	{
		when: statusIs(models.OfferStatusSent),
		label: func(o *models.Offer, viewerRole string) string {
			if viewerRole == senderRole(o) {
				return "Offer Sent"
			}
			return "Offer Received"
		},
	},
}

// OfferDisplayStatus returns the status label shown to the given party.
// Unmatched statuses fall through to the raw status string.
func OfferDisplayStatus(o *models.Offer, viewerRole string) string {
	for _, r := range displayRules {
		if r.when(o, viewerRole) {
			return r.label(o, viewerRole)
		}
	}
	return o.Status
}
