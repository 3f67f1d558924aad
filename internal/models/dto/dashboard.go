package dto

import "github.com/hongminglow/taheel-be/internal/models"

// ServicesResponse is the filtered list of services the account may request.
type ServicesResponse struct {
	Query    string           `json:"query"`
	Lang     string           `json:"lang"`
	Services []models.Service `json:"services"`
}
