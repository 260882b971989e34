package server

import "time"

// SearchForm carries the non-file fields of a search upload
type SearchForm struct {
	TopK int `form:"top_k" binding:"min=0"`
}

// EntryResponse represents one indexed image
type EntryResponse struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// DatasetResponse represents the response body for getting the dataset
type DatasetResponse struct {
	DatasetID string          `json:"dataset_id"`
	Bins      int             `json:"bins"`
	ImageSize uint            `json:"image_size"`
	Count     int             `json:"count"`
	LoadedAt  *time.Time      `json:"loaded_at,omitempty"`
	Entries   []EntryResponse `json:"entries"`
}

// FailureResponse describes an image that could not be indexed
type FailureResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// LoadResponse represents the response body for a dataset upload
type LoadResponse struct {
	DatasetID  string            `json:"dataset_id"`
	Total      int               `json:"total"`
	Indexed    int               `json:"indexed"`
	Failures   []FailureResponse `json:"failures"`
	DurationMS int64             `json:"duration_ms"`
}

// SearchResponse represents the response body for search results
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchResult represents a single search result
type SearchResult struct {
	ID       string  `json:"id"`
	Position int     `json:"position"`
	Score    float64 `json:"score"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
