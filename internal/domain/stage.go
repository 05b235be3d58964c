package domain

import (
	"errors"
	"sort"
)

var ErrStageNotFound = errors.New("production stage not found")

// ProductionStage is a named step of a part's workflow
type ProductionStage struct {
	StageID             string `bson:"stageId"`
	Name                string `bson:"name"`
	DisplayOrder        int    `bson:"displayOrder"`
	DefaultSetupMinutes int    `bson:"defaultSetupMinutes"`
	IsActive            bool   `bson:"isActive"`
}

// PartStageRequirement says a part must pass through a stage, and when.
type PartStageRequirement struct {
	PartID         string  `bson:"partId"`
	StageID        string  `bson:"stageId"`
	ExecutionOrder int     `bson:"executionOrder"`
	EstimatedHours float64 `bson:"estimatedHours"`
}

// StageRequirements is a part's requirement list.
type StageRequirements []PartStageRequirement

// Sorted returns a copy ordered by ExecutionOrder, then StageID.
func (r StageRequirements) Sorted() StageRequirements {
	out := make(StageRequirements, len(r))
	copy(out, r)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ExecutionOrder != out[j].ExecutionOrder {
			return out[i].ExecutionOrder < out[j].ExecutionOrder
		}
		return out[i].StageID < out[j].StageID
	})
	return out
}

// Find returns the requirement for a stage.
func (r StageRequirements) Find(stageID string) (PartStageRequirement, bool) {
	for _, req := range r {
		if req.StageID == stageID {
			return req, true
		}
	}
	return PartStageRequirement{}, false
}

// IsLast reports whether stageID carries the highest ExecutionOrder. With no
// requirements every stage is the last one.
func (r StageRequirements) IsLast(stageID string) bool {
	if len(r) == 0 {
		return true
	}
	sorted := r.Sorted()
	maxOrder := sorted[len(sorted)-1].ExecutionOrder
	req, ok := r.Find(stageID)
	return ok && req.ExecutionOrder == maxOrder
}

// Next returns the requirement following stageID, if any.
func (r StageRequirements) Next(stageID string) (PartStageRequirement, bool) {
	current, ok := r.Find(stageID)
	if !ok {
		return PartStageRequirement{}, false
	}
	for _, req := range r.Sorted() {
		if req.ExecutionOrder > current.ExecutionOrder {
			return req, true
		}
	}
	return PartStageRequirement{}, false
}
