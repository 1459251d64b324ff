package auto

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/pathplanner/commands"
	"go.viam.com/pathplanner/path"
)

const (
	waitType       = "wait"
	namedType      = "named"
	pathType       = "path"
	sequentialType = "sequential"
	parallelType   = "parallel"
	raceType       = "race"
	deadlineType   = "deadline"
)

// commandJSON is a node of the command tree in auto files and event markers.
type commandJSON struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type waitData struct {
	WaitTime float64 `json:"waitTime"`
}

type namedData struct {
	Name *string `json:"name"`
}

type pathData struct {
	PathName *string `json:"pathName"`
}

type groupData struct {
	Commands []commandJSON `json:"commands"`
}

func decodeData(c commandJSON, v interface{}) error {
	if len(c.Data) == 0 {
		return NewMalformedCommandError(c.Type, errors.New("no data"))
	}
	if err := json.Unmarshal(c.Data, v); err != nil {
		return NewMalformedCommandError(c.Type, err)
	}
	return nil
}

// factory builds commands from their file representation. Paths are loaded from Choreo
// trajectories when choreo is set.
type factory struct {
	builder *Builder
	choreo  bool
}

var _ path.CommandParser = (*factory)(nil)

// ParseCommand builds the command of an event marker.
func (f *factory) ParseCommand(data json.RawMessage) (commands.Command, error) {
	var c commandJSON
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "malformed command")
	}
	return f.command(c)
}

func (f *factory) command(c commandJSON) (commands.Command, error) {
	switch c.Type {
	case waitType:
		var data waitData
		if err := decodeData(c, &data); err != nil {
			return nil, err
		}
		return commands.NewWaitCommand(f.builder.clock(), data.WaitTime), nil
	case namedType:
		var data namedData
		if err := decodeData(c, &data); err != nil {
			return nil, err
		}
		if data.Name == nil {
			return commands.None(), nil
		}
		return reusable(f.builder.registry.Get(*data.Name)), nil
	case pathType:
		p, err := f.path(c)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return commands.None(), nil
		}
		return f.builder.FollowPath(p)
	case sequentialType, parallelType, raceType, deadlineType:
		children, err := f.children(c)
		if err != nil {
			return nil, err
		}
		switch c.Type {
		case sequentialType:
			return commands.Sequence(children...), nil
		case parallelType:
			return commands.Parallel(children...), nil
		case raceType:
			return commands.Race(children...), nil
		}
		if len(children) == 0 {
			return nil, NewMalformedCommandError(c.Type, errors.New("a deadline group needs a deadline command"))
		}
		return commands.Deadline(children[0], children[1:]...), nil
	}
	f.builder.logger.Warnw("substituting a no-op command", "error", NewUnknownCommandTypeError(c.Type))
	return commands.None(), nil
}

func (f *factory) children(c commandJSON) ([]commands.Command, error) {
	var data groupData
	if err := decodeData(c, &data); err != nil {
		return nil, err
	}
	cmds := make([]commands.Command, 0, len(data.Commands))
	for _, child := range data.Commands {
		cmd, err := f.command(child)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// path loads the path of a path command. A path command without a path name yields nil.
func (f *factory) path(c commandJSON) (*path.Path, error) {
	var data pathData
	if err := decodeData(c, &data); err != nil {
		return nil, err
	}
	if data.PathName == nil {
		return nil, nil
	}
	if f.choreo {
		return f.builder.choreo.Load(*data.PathName)
	}
	return f.builder.loader.LoadPath(*data.PathName)
}

// paths returns every path in the command tree, depth first.
func (f *factory) paths(c commandJSON) ([]*path.Path, error) {
	switch c.Type {
	case pathType:
		p, err := f.path(c)
		if err != nil || p == nil {
			return nil, err
		}
		return []*path.Path{p}, nil
	case sequentialType, parallelType, raceType, deadlineType:
		var data groupData
		if err := decodeData(c, &data); err != nil {
			return nil, err
		}
		var all []*path.Path
		for _, child := range data.Commands {
			ps, err := f.paths(child)
			if err != nil {
				return nil, err
			}
			all = append(all, ps...)
		}
		return all, nil
	}
	return nil, nil
}

// reusable wraps a registered command so that it can appear in several groups.
func reusable(cmd commands.Command) commands.Command {
	return &commands.FuncCommand{
		Base:         commands.NewBase(cmd.Name(), cmd.Requirements()...),
		OnInitialize: cmd.Initialize,
		OnExecute:    cmd.Execute,
		OnEnd:        cmd.End,
		Finished:     cmd.IsFinished,
	}
}

// commandNames lists the named commands in the tree, for diagnostics.
func commandNames(c commandJSON) []string {
	switch c.Type {
	case namedType:
		var data namedData
		if json.Unmarshal(c.Data, &data) == nil && data.Name != nil {
			return []string{*data.Name}
		}
	case sequentialType, parallelType, raceType, deadlineType:
		var data groupData
		if json.Unmarshal(c.Data, &data) == nil {
			return lo.Uniq(lo.FlatMap(data.Commands, func(child commandJSON, _ int) []string {
				return commandNames(child)
			}))
		}
	}
	return nil
}
