package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/OCAP2/skelscale/internal/probe"
	"github.com/OCAP2/skelscale/internal/scaling"

	"github.com/spf13/viper"
)

func runProbe(args []string) error {
	fs := newFlagSet("probe")
	scales := fs.StringArray("scale", nil, "override one factor as Bone=value (repeatable)")
	bone := fs.String("bone", "", "bone whose factor is changed")
	value := fs.Float64("value", 0, "new factor for --bone")
	index := fs.Int("frame", 0, "frame to probe")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("probe: expected one clip path")
	}
	if *bone == "" || !fs.Changed("value") {
		return errors.New("probe: --bone and --value are required")
	}

	done, err := setup(fs, nil)
	if err != nil {
		return err
	}
	defer done()

	in, err := loadInput(fs.Arg(0), *scales)
	if err != nil {
		return err
	}
	frame, err := in.frame(*index)
	if err != nil {
		return err
	}

	report, err := probe.Impact(in.hierarchy, in.table.Snapshot(), *bone, *value, frame)
	if err != nil {
		return err
	}
	if err := writeJSON(osStdout, report); err != nil {
		return err
	}

	violations := report.Violations()
	Logger.Info("Probed bone", "bone", *bone, "value", *value,
		"changed", len(report.Changed()), "violations", len(violations))
	if len(violations) > 0 {
		names := make([]string, len(violations))
		for i, j := range violations {
			names[i] = j.Bone
		}
		return fmt.Errorf("locality violated: %s moved outside the subtree of %s", strings.Join(names, ", "), *bone)
	}
	return nil
}

type projectOutput struct {
	Clip        string             `json:"clip"`
	Frame       int                `json:"frame"`
	Robot       string             `json:"robot,omitempty"`
	Projections []probe.Projection `json:"projections"`
}

func runProject(args []string) error {
	fs := newFlagSet("project")
	scales := fs.StringArray("scale", nil, "override one factor as Bone=value (repeatable)")
	index := fs.Int("frame", 0, "frame to project")
	robotPath := fs.String("robot-positions", "", "JSON file of robot body positions")
	robot := fs.String("robot", probe.DefaultRobot, "robot the positions belong to")
	out := fs.String("out", "", "output file, stdout when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("project: expected one clip path")
	}
	if !probe.IsSupportedRobot(*robot) {
		return fmt.Errorf("project: unsupported robot %q (supported: %s)", *robot, strings.Join(probe.SupportedRobots, ", "))
	}

	done, err := setup(fs, nil)
	if err != nil {
		return err
	}
	defer done()

	in, err := loadInput(fs.Arg(0), *scales)
	if err != nil {
		return err
	}
	frame, err := in.frame(*index)
	if err != nil {
		return err
	}
	scaled, err := scaling.Scale(in.hierarchy, in.table.Snapshot(), frame)
	if err != nil {
		return err
	}
	robotPos, err := loadRobotPositions(*robotPath)
	if err != nil {
		return err
	}

	result := projectOutput{
		Clip:        in.clip.Name,
		Frame:       *index,
		Projections: probe.Compare(in.hierarchy, frame.Positions(), scaled.Positions(), robotPos),
	}
	if len(robotPos) > 0 {
		result.Robot = *robot
	}

	if *out == "" {
		return writeJSON(osStdout, result)
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()
	if err := writeJSON(f, result); err != nil {
		return err
	}
	Logger.Info("Wrote projections", "path", *out, "projections", len(result.Projections))
	return nil
}

func runStats(args []string) error {
	fs := newFlagSet("stats")
	scales := fs.StringArray("scale", nil, "override one factor as Bone=value (repeatable)")
	fs.Int("workers", 0, "batch workers, 0 for one per CPU")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("stats: expected one clip path")
	}

	done, err := setup(fs, map[string]string{"scaling.workers": "workers"})
	if err != nil {
		return err
	}
	defer done()

	in, err := loadInput(fs.Arg(0), *scales)
	if err != nil {
		return err
	}
	scaled, err := scaling.ScaleSequence(context.Background(), in.hierarchy, in.table.Snapshot(), in.clip.Frames, viper.GetInt("scaling.workers"))
	if err != nil {
		return err
	}
	stats, err := probe.SegmentStats(in.hierarchy, in.clip.Frames, scaled)
	if err != nil {
		return err
	}
	return writeJSON(osStdout, stats)
}

func runRobots(args []string) error {
	fs := newFlagSet("robots")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range probe.SupportedRobots {
		if name == probe.DefaultRobot {
			fmt.Fprintln(osStdout, name, "(default)")
			continue
		}
		fmt.Fprintln(osStdout, name)
	}
	return nil
}
