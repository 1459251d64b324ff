package path

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/pathplanner/commands"
	"go.viam.com/pathplanner/spatialmath"
)

// supportedVersionPrefix is the version family of path and auto files this package reads.
const supportedVersionPrefix = "2025."

// CommandParser builds commands from the JSON command trees embedded in path and auto files.
type CommandParser interface {
	ParseCommand(data json.RawMessage) (commands.Command, error)
}

// PointJSON is an (x, y) position in files.
type PointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point converts to an r2.Point.
func (p PointJSON) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

type waypointJSON struct {
	Anchor      PointJSON  `json:"anchor"`
	PrevControl *PointJSON `json:"prevControl"`
	NextControl *PointJSON `json:"nextControl"`
	IsLocked    bool       `json:"isLocked"`
	LinkedName  *string    `json:"linkedName"`
}

type rotationTargetJSON struct {
	WaypointRelativePos float64 `json:"waypointRelativePos"`
	RotationDegrees     float64 `json:"rotationDegrees"`
}

type constraintZoneJSON struct {
	Name                   string      `json:"name"`
	MinWaypointRelativePos float64     `json:"minWaypointRelativePos"`
	MaxWaypointRelativePos float64     `json:"maxWaypointRelativePos"`
	Constraints            Constraints `json:"constraints"`
}

type pointTowardsZoneJSON struct {
	Name                   string    `json:"name"`
	FieldPosition          PointJSON `json:"fieldPosition"`
	RotationOffset         float64   `json:"rotationOffset"`
	MinWaypointRelativePos float64   `json:"minWaypointRelativePos"`
	MaxWaypointRelativePos float64   `json:"maxWaypointRelativePos"`
}

type eventMarkerJSON struct {
	Name                   string          `json:"name"`
	WaypointRelativePos    float64         `json:"waypointRelativePos"`
	EndWaypointRelativePos *float64        `json:"endWaypointRelativePos"`
	Command                json.RawMessage `json:"command"`
}

type pathFileJSON struct {
	Version               interface{}            `json:"version"`
	Waypoints             []waypointJSON         `json:"waypoints"`
	RotationTargets       []rotationTargetJSON   `json:"rotationTargets"`
	ConstraintZones       []constraintZoneJSON   `json:"constraintZones"`
	PointTowardsZones     []pointTowardsZoneJSON `json:"pointTowardsZones"`
	EventMarkers          []eventMarkerJSON      `json:"eventMarkers"`
	GlobalConstraints     Constraints            `json:"globalConstraints"`
	GoalEndState          GoalEndState           `json:"goalEndState"`
	Reversed              bool                   `json:"reversed"`
	Folder                *string                `json:"folder"`
	IdealStartingState    *IdealStartingState    `json:"idealStartingState"`
	UseDefaultConstraints bool                   `json:"useDefaultConstraints"`
}

// CheckVersion returns a FileVersionError unless version is a "2025.X" string.
func CheckVersion(file string, version interface{}) error {
	str, ok := version.(string)
	if !ok || !strings.HasPrefix(str, supportedVersionPrefix) {
		var found string
		if version != nil {
			found = fmt.Sprint(version)
		}
		return &FileVersionError{File: file, Version: found}
	}
	return nil
}

// FileOptions control how path files are turned into paths.
type FileOptions struct {
	// Commands builds event marker commands. When nil, markers carry no command.
	Commands CommandParser
	// DefaultConstraints replace the global constraints of files that ask for the defaults.
	DefaultConstraints *Constraints
}

// FromJSON reads a path file.
func FromJSON(name string, r io.Reader, opts FileOptions) (*Path, error) {
	var file pathFileJSON
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrapf(err, "malformed path file %q", name)
	}
	if err := CheckVersion(name, file.Version); err != nil {
		return nil, err
	}

	params := Params{
		Name:               name,
		GlobalConstraints:  file.GlobalConstraints,
		GoalEndState:       file.GoalEndState,
		IdealStartingState: file.IdealStartingState,
		Reversed:           file.Reversed,
	}
	if file.UseDefaultConstraints && opts.DefaultConstraints != nil {
		params.GlobalConstraints = *opts.DefaultConstraints
	}
	params.Waypoints = lo.Map(file.Waypoints, func(w waypointJSON, _ int) Waypoint {
		wp := Waypoint{Anchor: w.Anchor.Point()}
		if w.PrevControl != nil {
			p := w.PrevControl.Point()
			wp.PrevControl = &p
		}
		if w.NextControl != nil {
			p := w.NextControl.Point()
			wp.NextControl = &p
		}
		return wp
	})
	params.RotationTargets = lo.Map(file.RotationTargets, func(t rotationTargetJSON, _ int) RotationTarget {
		return RotationTarget{Position: t.WaypointRelativePos, Rotation: spatialmath.NewRotationFromDegrees(t.RotationDegrees)}
	})
	params.ConstraintZones = lo.Map(file.ConstraintZones, func(z constraintZoneJSON, _ int) ConstraintsZone {
		return ConstraintsZone{
			Name:        z.Name,
			MinPosition: z.MinWaypointRelativePos,
			MaxPosition: z.MaxWaypointRelativePos,
			Constraints: z.Constraints,
		}
	})
	params.PointTowardsZones = lo.Map(file.PointTowardsZones, func(z pointTowardsZoneJSON, _ int) PointTowardsZone {
		return PointTowardsZone{
			Name:           z.Name,
			TargetPosition: z.FieldPosition.Point(),
			RotationOffset: spatialmath.NewRotationFromDegrees(z.RotationOffset),
			MinPosition:    z.MinWaypointRelativePos,
			MaxPosition:    z.MaxWaypointRelativePos,
		}
	})
	for _, m := range file.EventMarkers {
		var cmd commands.Command
		if opts.Commands != nil && len(m.Command) > 0 && string(m.Command) != "null" {
			var err error
			if cmd, err = opts.Commands.ParseCommand(m.Command); err != nil {
				return nil, errors.Wrapf(err, "event marker %q of path %q", m.Name, name)
			}
		}
		if m.EndWaypointRelativePos != nil {
			params.EventMarkers = append(params.EventMarkers, NewZonedMarker(m.Name, m.WaypointRelativePos, *m.EndWaypointRelativePos, cmd))
		} else {
			params.EventMarkers = append(params.EventMarkers, NewPointMarker(m.Name, m.WaypointRelativePos, cmd))
		}
	}

	p, err := New(params)
	if err != nil {
		return nil, errors.Wrapf(err, "path file %q", name)
	}
	return p, nil
}
