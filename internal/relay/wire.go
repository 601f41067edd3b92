package relay

const Path = "/api/generate-try-on"

type GenerateRequest struct {
	PersonImage   string `json:"personImage"`
	ClothingImage string `json:"clothingImage"`
}

// GenerateResponse holds either Result (a data URI) or Error. Code is the
// failure kind and is only set together with Error.
type GenerateResponse struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}
