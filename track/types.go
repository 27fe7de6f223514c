package track

// Point is a position in telemetry coordinates.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Marker is a fixed point on the track's discretized path.
type Marker struct {
	ID       int   `yaml:"id" json:"id" validate:"gt=0"`
	Position Point `yaml:",inline" json:"position"`
}

// Bounds is the bounding box of a marker table.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Width returns the horizontal extent.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }
