package elevation

import (
	"errors"
	"fmt"
	"slices"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
)

var (
	// ErrUnknownRole is returned for role names other than height, shadow
	// and ground.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUnknownShape is returned when a shape id is not in the session.
	ErrUnknownShape = errors.New("unknown shape")
	// ErrRoleMismatch is returned when a role is assigned to the wrong kind
	// of shape.
	ErrRoleMismatch = errors.New("shape kind does not fit role")
	// ErrInvalidShape is returned for shapes with non-finite coordinates or
	// an empty id.
	ErrInvalidShape = errors.New("invalid shape")
)

// Session is the role side-table of one annotation workspace: it owns the
// measurement shapes, which shape fills which role, and the override height.
// A Session is not safe for concurrent use.
type Session struct {
	arrows   map[ShapeID]Arrow
	polygons map[ShapeID]Polygon
	roles    map[Role]ShapeID
	override float64
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{
		arrows:   make(map[ShapeID]Arrow),
		polygons: make(map[ShapeID]Polygon),
		roles:    make(map[Role]ShapeID),
	}
}

// PutArrow adds or moves an arrow. Replacing a polygon of the same id drops
// the ground role if it pointed there.
func (s *Session) PutArrow(id ShapeID, a Arrow) error {
	if id == "" || !a.Finite() {
		return fmt.Errorf("%w: arrow %q", ErrInvalidShape, id)
	}
	if _, ok := s.polygons[id]; ok {
		s.Remove(id)
	}
	s.arrows[id] = a
	return nil
}

// PutPolygon adds or edits a polygon. The points are copied.
func (s *Session) PutPolygon(id ShapeID, p Polygon) error {
	if id == "" || !geom.AllFinite(p.Points) {
		return fmt.Errorf("%w: polygon %q", ErrInvalidShape, id)
	}
	if _, ok := s.arrows[id]; ok {
		s.Remove(id)
	}
	s.polygons[id] = Polygon{Points: slices.Clone(p.Points)}
	return nil
}

// Remove destroys a shape. Roles that pointed at it become unassigned.
// It reports whether the shape existed.
func (s *Session) Remove(id ShapeID) bool {
	_, isArrow := s.arrows[id]
	_, isPolygon := s.polygons[id]
	if !isArrow && !isPolygon {
		return false
	}
	delete(s.arrows, id)
	delete(s.polygons, id)
	for role, shape := range s.roles {
		if shape == id {
			delete(s.roles, role)
		}
	}
	return true
}

// Assign binds role to the shape id. Height and shadow need an arrow,
// ground needs a polygon. One shape may fill several arrow roles.
func (s *Session) Assign(role Role, id ShapeID) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	_, isArrow := s.arrows[id]
	_, isPolygon := s.polygons[id]
	switch {
	case !isArrow && !isPolygon:
		return fmt.Errorf("%w: %q", ErrUnknownShape, id)
	case role.needsArrow() && !isArrow, !role.needsArrow() && !isPolygon:
		return fmt.Errorf("%w: %s on %q", ErrRoleMismatch, role, id)
	}
	s.roles[role] = id
	return nil
}

// Clear unassigns role.
func (s *Session) Clear(role Role) {
	delete(s.roles, role)
}

// SetOverrideHeight stores the user-entered real-world height. Values that
// are not positive disable the override.
func (s *Session) SetOverrideHeight(v float64) {
	s.override = v
}

// OverrideHeight returns the stored override height.
func (s *Session) OverrideHeight() float64 { return s.override }

// Assignments lists the current role bindings in role order.
func (s *Session) Assignments() []Assignment {
	out := make([]Assignment, 0, len(s.roles))
	for _, r := range Roles {
		if id, ok := s.roles[r]; ok {
			out = append(out, Assignment{Role: r, Shape: id})
		}
	}
	return out
}

// Arrows returns a copy of the arrows keyed by id.
func (s *Session) Arrows() map[ShapeID]Arrow {
	out := make(map[ShapeID]Arrow, len(s.arrows))
	for id, a := range s.arrows {
		out[id] = a
	}
	return out
}

// Polygons returns a copy of the polygons keyed by id.
func (s *Session) Polygons() map[ShapeID]Polygon {
	out := make(map[ShapeID]Polygon, len(s.polygons))
	for id, p := range s.polygons {
		out[id] = Polygon{Points: slices.Clone(p.Points)}
	}
	return out
}

// Input snapshots the assigned shapes for a computation.
func (s *Session) Input() Input {
	in := Input{OverrideHeight: s.override}
	if id, ok := s.roles[RoleHeight]; ok {
		a := s.arrows[id]
		in.Height = &a
	}
	if id, ok := s.roles[RoleShadow]; ok {
		a := s.arrows[id]
		in.Shadow = &a
	}
	if id, ok := s.roles[RoleGround]; ok {
		p := Polygon{Points: slices.Clone(s.polygons[id].Points)}
		in.Ground = &p
	}
	return in
}

// Recompute runs calc over the current snapshot.
func (s *Session) Recompute(calc Calculator, explicit bool) Outcome {
	return calc.Compute(s.Input(), explicit)
}
