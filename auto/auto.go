package auto

import (
	"encoding/json"

	"github.com/pkg/errors"

	"go.viam.com/pathplanner/commands"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/spatialmath"
)

type autoFileJSON struct {
	Version    interface{} `json:"version"`
	Command    commandJSON `json:"command"`
	ResetOdom  bool        `json:"resetOdom"`
	Folder     *string     `json:"folder"`
	ChoreoAuto bool        `json:"choreoAuto"`
}

func readAutoFile(loader *path.Loader, name string) (*autoFileJSON, error) {
	f, err := loader.Open(path.AutoFile, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()

	var file autoFileJSON
	if err := json.NewDecoder(f).Decode(&file); err != nil {
		return nil, errors.Wrapf(err, "malformed auto file %q", name)
	}
	if err := path.CheckVersion(name+".auto", file.Version); err != nil {
		return nil, err
	}
	return &file, nil
}

// Auto is the command of an auto file.
type Auto struct {
	commands.Base
	command      commands.Command
	startingPose spatialmath.Pose
	paths        []*path.Path
}

func newAuto(name string, cmd commands.Command, start spatialmath.Pose, paths []*path.Path) *Auto {
	return &Auto{
		Base:         commands.NewBase(name, cmd.Requirements()...),
		command:      cmd,
		startingPose: start,
		paths:        paths,
	}
}

// StartingPose is where the first path of the auto starts, or the origin for autos without paths.
func (a *Auto) StartingPose() spatialmath.Pose {
	return a.startingPose
}

// Paths are the paths of the auto, depth first.
func (a *Auto) Paths() []*path.Path {
	return a.paths
}

// Initialize implements commands.Command.
func (a *Auto) Initialize() {
	a.command.Initialize()
}

// Execute implements commands.Command.
func (a *Auto) Execute() {
	a.command.Execute()
}

// IsFinished implements commands.Command.
func (a *Auto) IsFinished() bool {
	return a.command.IsFinished()
}

// End implements commands.Command.
func (a *Auto) End(interrupted bool) {
	a.command.End(interrupted)
}
