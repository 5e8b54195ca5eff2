package dto

import "encoding/json"

type TableCheckResponse struct {
	Accessible bool            `json:"accessible"`
	Count      int             `json:"count"`
	Sample     json.RawMessage `json:"sample"`
}

type TestDBResponse struct {
	Success bool                          `json:"success"`
	Tables  map[string]TableCheckResponse `json:"tables"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}
