package host

// Point is a screen-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Scale returns p with both coordinates multiplied by f.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Midpoint returns the point halfway between p and q.
func (p Point) Midpoint(q Point) Point {
	return p.Add(q).Scale(0.5)
}

// Color is an RGBA color as used by color slots and sprite pens.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// LabelFragment describes one fragment of a custom block's label, as edited
// in the block input dialog.
type LabelFragment struct {
	LabelString  string `json:"labelString"`
	Type         string `json:"type,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty"`
	Options      string `json:"options,omitempty"`
	ReadOnly     bool   `json:"isReadOnly,omitempty"`
	Deleted      bool   `json:"isDeleted,omitempty"`
}
