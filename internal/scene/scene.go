// Package scene reads and writes elevation scenes as GeoJSON feature
// collections in pixel coordinates.
//
// A LineString feature is an arrow (its first and last vertex), a Polygon
// feature is a ground-plane polygon (its outer ring). The "id" member (or an
// "id" property) names the shape and the "role" property assigns it:
// "height", "shadow", "ground" or a list of those. A Point feature with an
// "override_height" property sets the real-world height override.
package scene

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/geomeasure/internal/elevation"
	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Property names used in scene files.
const (
	PropID             = "id"
	PropRole           = "role"
	PropOverrideHeight = "override_height"
	PropKind           = "kind"
)

// ErrUnsupportedGeometry is returned for geometries other than LineString,
// Polygon and Point.
var ErrUnsupportedGeometry = errors.New("unsupported geometry")

// FeatureError reports the feature a parse error belongs to.
type FeatureError struct {
	Index int
	ID    string
	Err   error
}

func (e *FeatureError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("feature %d (%s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("feature %d: %v", e.Index, e.Err)
}

func (e *FeatureError) Unwrap() error { return e.Err }

// Scene is a parsed scene file.
type Scene struct {
	Name    string
	Session *elevation.Session
}

// Load reads a scene file. The scene is named after the file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", path, err)
	}
	s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s, nil
}

// Parse decodes a GeoJSON FeatureCollection into a populated Session.
func Parse(data []byte) (*Scene, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	sess := elevation.NewSession()
	type pending struct {
		roles []elevation.Role
		id    elevation.ShapeID
		index int
	}
	var assigns []pending

	for i, f := range fc.Features {
		id := featureID(f, i)
		ferr := func(err error) error { return &FeatureError{Index: i, ID: string(id), Err: err} }

		roles, err := parseRoles(f.Properties[PropRole])
		if err != nil {
			return nil, ferr(err)
		}

		switch g := f.Geometry.(type) {
		case orb.LineString:
			if len(g) < 2 {
				return nil, ferr(errors.New("arrow needs at least 2 vertices"))
			}
			a := elevation.Arrow{Start: fromOrb(g[0]), End: fromOrb(g[len(g)-1])}
			if err := sess.PutArrow(id, a); err != nil {
				return nil, ferr(err)
			}
		case orb.Polygon:
			if len(g) == 0 {
				return nil, ferr(errors.New("polygon has no rings"))
			}
			p := elevation.Polygon{Points: make([]geom.Point, len(g[0]))}
			for j, pt := range g[0] {
				p.Points[j] = fromOrb(pt)
			}
			if err := sess.PutPolygon(id, p); err != nil {
				return nil, ferr(err)
			}
		case orb.Point:
			v, ok := f.Properties[PropOverrideHeight].(float64)
			if !ok {
				return nil, ferr(fmt.Errorf("point feature needs a numeric %q property", PropOverrideHeight))
			}
			sess.SetOverrideHeight(v)
			continue
		default:
			return nil, ferr(fmt.Errorf("%w: %T", ErrUnsupportedGeometry, f.Geometry))
		}

		if len(roles) > 0 {
			assigns = append(assigns, pending{roles: roles, id: id, index: i})
		}
	}

	// Assign after all shapes exist so that later duplicates of an id win.
	for _, p := range assigns {
		for _, r := range p.roles {
			if err := sess.Assign(r, p.id); err != nil {
				return nil, &FeatureError{Index: p.index, ID: string(p.id), Err: err}
			}
		}
	}
	return &Scene{Session: sess}, nil
}

func featureID(f *geojson.Feature, index int) elevation.ShapeID {
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return elevation.ShapeID(v)
		}
	case float64:
		return elevation.ShapeID(fmt.Sprintf("%g", v))
	}
	if v, ok := f.Properties[PropID].(string); ok && v != "" {
		return elevation.ShapeID(v)
	}
	return elevation.ShapeID(fmt.Sprintf("shape-%d", index))
}

func parseRoles(v any) ([]elevation.Role, error) {
	var names []string
	switch r := v.(type) {
	case nil:
		return nil, nil
	case string:
		names = []string{r}
	case []any:
		for _, item := range r {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("role list must contain strings, got %T", item)
			}
			names = append(names, s)
		}
	default:
		return nil, fmt.Errorf("role must be a string or a list, got %T", v)
	}

	roles := make([]elevation.Role, 0, len(names))
	for _, n := range names {
		r, err := elevation.ParseRole(strings.ToLower(strings.TrimSpace(n)))
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}

func fromOrb(p orb.Point) geom.Point { return geom.Point{X: p.X(), Y: p.Y()} }

func toOrb(p geom.Point) orb.Point { return orb.Point{p.X, p.Y} }

// Build encodes a session as a FeatureCollection. Shapes are written in id
// order; roles are attached as properties.
func Build(sess *elevation.Session) *geojson.FeatureCollection {
	roles := make(map[elevation.ShapeID][]string)
	for _, a := range sess.Assignments() {
		roles[a.Shape] = append(roles[a.Shape], string(a.Role))
	}

	fc := geojson.NewFeatureCollection()
	add := func(id elevation.ShapeID, g orb.Geometry) {
		f := geojson.NewFeature(g)
		f.ID = string(id)
		switch r := roles[id]; len(r) {
		case 0:
		case 1:
			f.Properties[PropRole] = r[0]
		default:
			f.Properties[PropRole] = r
		}
		fc.Append(f)
	}

	arrows := sess.Arrows()
	for _, id := range sortedIDs(arrows) {
		a := arrows[id]
		add(id, orb.LineString{toOrb(a.Start), toOrb(a.End)})
	}
	polygons := sess.Polygons()
	for _, id := range sortedIDs(polygons) {
		ring := make(orb.Ring, 0, len(polygons[id].Points)+1)
		for _, p := range polygons[id].Points {
			ring = append(ring, toOrb(p))
		}
		if len(ring) > 0 && !ring.Closed() {
			ring = append(ring, ring[0])
		}
		add(id, orb.Polygon{ring})
	}

	if v := sess.OverrideHeight(); v != 0 {
		f := geojson.NewFeature(orb.Point{0, 0})
		f.Properties[PropOverrideHeight] = v
		fc.Append(f)
	}
	return fc
}

func sortedIDs[V any](m map[elevation.ShapeID]V) []elevation.ShapeID {
	ids := make([]elevation.ShapeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Annotate appends a Point feature carrying the outcome. It sits at the
// start of the shadow arrow, or at the origin when there is none.
func Annotate(fc *geojson.FeatureCollection, in elevation.Input, out elevation.Outcome) {
	at := orb.Point{0, 0}
	if in.Shadow != nil {
		at = toOrb(in.Shadow.Start)
	}
	f := geojson.NewFeature(at)
	f.Properties[PropKind] = "elevation"
	f.Properties["available"] = out.Available()
	if r := out.Result; r != nil {
		f.Properties["angle_degrees"] = r.AngleDegrees
		f.Properties["height_used"] = r.HeightUsed
		f.Properties["height_source"] = string(r.HeightSource)
		f.Properties["height_pixels"] = r.HeightPixels
		f.Properties["shadow_pixels"] = r.ShadowPixels
		f.Properties["shadow_corrected"] = r.ShadowCorrected
		f.Properties["perspective_applied"] = r.PerspectiveApplied
		f.Properties["scale_factor"] = r.ScaleFactor
	}
	if len(out.Warnings) > 0 {
		f.Properties["warnings"] = out.Warnings
	}
	fc.Append(f)
}

// Bounds returns the pixel extent of every shape in the session.
func Bounds(sess *elevation.Session) (orb.Bound, bool) {
	var (
		b     orb.Bound
		found bool
	)
	extend := func(g orb.Geometry) {
		if found {
			b = b.Union(g.Bound())
		} else {
			b, found = g.Bound(), true
		}
	}
	for _, a := range sess.Arrows() {
		extend(orb.LineString{toOrb(a.Start), toOrb(a.End)})
	}
	for _, p := range sess.Polygons() {
		if len(p.Points) == 0 {
			continue
		}
		ring := make(orb.Ring, len(p.Points))
		for i, pt := range p.Points {
			ring[i] = toOrb(pt)
		}
		extend(ring)
	}
	return b, found
}
