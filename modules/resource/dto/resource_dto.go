package dto

import (
	"go-meeting-core/modules/resource/entity"
)

type CreateResourceRequest struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Location string `json:"location"`
}

type UpdateResourceRequest struct {
	Name     *string `json:"name"`
	Capacity *int    `json:"capacity"`
	Location *string `json:"location"`
	IsActive *bool   `json:"is_active"`
}

type ResourceResponse struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Location string `json:"location"`
	IsActive bool   `json:"is_active"`
}

func ToResourceResponse(r *entity.Resource) *ResourceResponse {
	return &ResourceResponse{
		ID:       r.ID.String(),
		Type:     r.Type,
		Name:     r.Name,
		Capacity: r.Capacity,
		Location: r.Location,
		IsActive: r.IsActive,
	}
}
