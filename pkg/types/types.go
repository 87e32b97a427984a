package types

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Primary is the face a vision model picked as the main subject
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// AnalysisResult is the answer of a vision model to the face prompt
type AnalysisResult struct {
	Primary     Primary `json:"primary"`
	Description string  `json:"description"`
}

// NoFace is the answer used when the model output carries no usable face
func NoFace(description string) *AnalysisResult {
	return &AnalysisResult{
		Primary:     Primary{Label: "none"},
		Description: description,
	}
}
