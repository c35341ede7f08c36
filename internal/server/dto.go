package server

import "github.com/starford/quire/internal/index"

// ChapterListResponse is the response body of GET /api/chapters.
type ChapterListResponse struct {
	Chapters []index.PageRow `json:"chapters"`
	Total    int             `json:"total"`
}

// SearchResponse is the response body of GET /api/search.
type SearchResponse struct {
	Query   string               `json:"query"`
	Results []index.SearchResult `json:"results"`
	Total   int                  `json:"total"`
}

// HealthResponse is the response body of the health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}
