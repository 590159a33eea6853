// Package elevation derives the sun elevation angle from a height arrow, a
// shadow arrow and an optional ground-plane polygon that removes perspective
// distortion from the shadow length.
package elevation

import (
	"fmt"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
)

// Arrow is a user-drawn measurement arrow in absolute pixel coordinates.
type Arrow struct {
	Start geom.Point `json:"start" yaml:"start"`
	End   geom.Point `json:"end" yaml:"end"`
}

// Length is the Euclidean pixel length of the arrow.
func (a Arrow) Length() float64 { return geom.Dist(a.Start, a.End) }

// Finite reports whether both endpoints are finite.
func (a Arrow) Finite() bool { return a.Start.Finite() && a.End.Finite() }

// Polygon is a closed ground-plane polygon in drawn order.
type Polygon struct {
	Points []geom.Point `json:"points" yaml:"points"`
}

// Role names what a shape measures.
type Role string

const (
	RoleHeight Role = "height"
	RoleShadow Role = "shadow"
	RoleGround Role = "ground"
)

// Roles lists every role in display order.
var Roles = []Role{RoleHeight, RoleShadow, RoleGround}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleHeight, RoleShadow, RoleGround:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// needsArrow reports whether the role is filled by an arrow (as opposed to a
// polygon).
func (r Role) needsArrow() bool { return r == RoleHeight || r == RoleShadow }

// ShapeID identifies a shape within a Session.
type ShapeID string

// Assignment binds a role to a shape.
type Assignment struct {
	Role  Role    `json:"role" yaml:"role"`
	Shape ShapeID `json:"shape" yaml:"shape"`
}

// HeightSource tells where Result.HeightUsed came from.
type HeightSource string

const (
	// HeightPixel is the raw pixel length of the height arrow.
	HeightPixel HeightSource = "pixel"
	// HeightActual is the user supplied override height.
	HeightActual HeightSource = "actual"
	// HeightScaledPixel is the pixel height scaled by the shadow's perspective
	// correction factor.
	HeightScaledPixel HeightSource = "scaled-pixel"
)

// Result is one elevation computation. It is never persisted.
type Result struct {
	HeightUsed         float64      `json:"height_used" yaml:"height_used"`
	HeightSource       HeightSource `json:"height_source" yaml:"height_source"`
	HeightPixels       float64      `json:"height_pixels" yaml:"height_pixels"`
	ShadowCorrected    float64      `json:"shadow_corrected" yaml:"shadow_corrected"`
	ShadowPixels       float64      `json:"shadow_pixels" yaml:"shadow_pixels"`
	PerspectiveApplied bool         `json:"perspective_applied" yaml:"perspective_applied"`
	ScaleFactor        float64      `json:"scale_factor" yaml:"scale_factor"`
	AngleDegrees       float64      `json:"angle_degrees" yaml:"angle_degrees"`
}

// Input is a snapshot of everything a computation needs. Nil fields are
// unassigned roles. OverrideHeight is used only when positive and finite.
type Input struct {
	Height         *Arrow   `json:"height,omitempty" yaml:"height,omitempty"`
	Shadow         *Arrow   `json:"shadow,omitempty" yaml:"shadow,omitempty"`
	Ground         *Polygon `json:"ground,omitempty" yaml:"ground,omitempty"`
	OverrideHeight float64  `json:"override_height,omitempty" yaml:"override_height,omitempty"`
}

// Outcome pairs an optional Result with advisory warnings. Result is nil when
// no angle is available.
type Outcome struct {
	Result   *Result        `json:"result" yaml:"result"`
	Warnings []string       `json:"warnings" yaml:"warnings"`
	Quad     *geom.QuadInfo `json:"quad,omitempty" yaml:"quad,omitempty"`
}

// Available reports whether an angle was computed.
func (o Outcome) Available() bool { return o.Result != nil }
