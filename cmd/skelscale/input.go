package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/OCAP2/skelscale/internal/config"
	"github.com/OCAP2/skelscale/internal/motion"
	"github.com/OCAP2/skelscale/internal/scaletable"
	"github.com/OCAP2/skelscale/internal/skeleton"
	"github.com/OCAP2/skelscale/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// input is a loaded clip with its hierarchy and the resolved scale table.
type input struct {
	clip      *core.Clip
	hierarchy *skeleton.Hierarchy
	table     *scaletable.Table
}

// loadInput reads the clip at path and builds its scale table from the
// config seed, the config overrides and then the --scale assignments.
func loadInput(path string, assignments []string) (*input, error) {
	clip, err := motion.Load(path)
	if err != nil {
		return nil, err
	}
	if clip.Name == "" {
		clip.Name = clipName(path)
	}

	h, err := skeleton.New(clip.Skeleton)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg, err := config.GetScaleTableConfig()
	if err != nil {
		return nil, err
	}
	table, err := buildTable(cfg, clip.HumanHeight, assignments)
	if err != nil {
		return nil, err
	}

	Logger.Info("Loaded clip",
		"clip", clip.Name,
		"bones", h.Len(),
		"frames", len(clip.Frames),
		"humanHeight", clip.HumanHeight,
		"scales", table.Len(),
	)
	return &input{clip: clip, hierarchy: h, table: table}, nil
}

func buildTable(cfg config.ScaleTableConfig, humanHeight float64, assignments []string) (*scaletable.Table, error) {
	table := scaletable.Seed(cfg.Base, cfg.AssumedHeight, humanHeight)
	for bone, v := range cfg.Overrides {
		table.Set(bone, v)
	}
	for _, a := range assignments {
		bone, v, err := scaletable.ParseAssignment(a)
		if err != nil {
			return nil, err
		}
		table.Set(bone, v)
	}
	return table, nil
}

// clipName derives a name from the file name without its extensions.
func clipName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (in *input) frame(index int) (core.Frame, error) {
	if index < 0 || index >= len(in.clip.Frames) {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", index, len(in.clip.Frames))
	}
	return in.clip.Frames[index], nil
}

// loadRobotPositions reads a JSON object of body name to [x, y, z] as
// written by the simulator, already Z-up in meters.
func loadRobotPositions(path string) (map[string]mgl64.Vec3, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open robot positions: %w", err)
	}
	defer f.Close()

	var raw map[string][3]float64
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode robot positions %s: %w", path, err)
	}
	out := make(map[string]mgl64.Vec3, len(raw))
	for name, p := range raw {
		out[name] = mgl64.Vec3(p)
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
