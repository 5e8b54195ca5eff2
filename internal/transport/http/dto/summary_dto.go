package dto

type SummarizeRequest struct {
	Answers   map[string]string `json:"answers"`
	Interests []string          `json:"interests"`
}

type SummarizeResponse struct {
	Intro []string `json:"intro"`
	Outro string   `json:"outro"`
}
