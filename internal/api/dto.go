package api

import "github.com/starford/ansuz/internal/models"

// TagsRequest is the request body for generating tags from raw text.
type TagsRequest struct {
	Text  string `json:"text" example:"# Kubernetes\nNotes on container orchestration." validate:"required"`
	Count int    `json:"count,omitempty" example:"5"`
}

// TagsResponse wraps generated tags.
type TagsResponse struct {
	Tags []string `json:"tags" validate:"required"`
}

// PropertiesRequest is the request body for generating frontmatter properties.
type PropertiesRequest struct {
	Text string `json:"text" example:"# Kubernetes\nNotes on container orchestration." validate:"required"`
}

// AnnotateResponse reports the outcome of annotating a note on disk.
type AnnotateResponse struct {
	Path    string `json:"path" example:"topics/k8s.md" validate:"required"`
	Updated bool   `json:"updated" validate:"required"`
	Message string `json:"message" example:"added 3 tags" validate:"required"`
}

// CheckResponse is the provider connectivity check result (aliased from the domain layer).
type CheckResponse = models.CheckResult
