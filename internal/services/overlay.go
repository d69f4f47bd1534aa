package services

import (
	"github.com/google/uuid"

	"github.com/dealflow/backend/internal/models"
)

// StatusOverlay is a pending local patch of milestone statuses, merged over
// the authoritative deal document for rendering only. It is never persisted
// and is discarded on the next successful fetch.
type StatusOverlay map[uuid.UUID]string

// ApplyStatusOverlay returns a copy of the deal with overlaid milestone
// statuses. The input deal is never mutated.
func ApplyStatusOverlay(d *models.Deal, overlay StatusOverlay) *models.Deal {
	out := cloneDeal(d)
	if len(overlay) == 0 {
		return out
	}
	for i := range out.Milestones {
		if status, ok := overlay[out.Milestones[i].ID]; ok {
			out.Milestones[i].Status = status
		}
	}
	return out
}
