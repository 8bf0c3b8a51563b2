package export

// Request describes one export job as submitted over the API.
type Request struct {
	ProjectName string  `json:"project_name"`
	Format      string  `json:"format"`
	OutputDir   string  `json:"output_dir"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	FrameRate   float64 `json:"frame_rate,omitempty"`
}
