// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/skelscale/internal/model"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	ClipName    string             `json:"clipName"`
	FPS         float64            `json:"fps"`
	HumanHeight float64            `json:"humanHeight"`
	StartTime   string             `json:"startTime"`
	Root        string             `json:"root"`
	Bones       []BoneJSON         `json:"bones"`
	ScaleTable  map[string]float64 `json:"scaleTable"`
	Frames      []FrameJSON        `json:"frames"`
}

// BoneJSON is one skeleton entry
type BoneJSON struct {
	Name   string     `json:"name"`
	Parent string     `json:"parent,omitempty"`
	Offset [3]float64 `json:"offset"`
}

// FrameJSON is one raw frame and its scaled result
type FrameJSON struct {
	Index  int                       `json:"index"`
	Raw    map[string]model.PoseJSON `json:"raw"`
	Scaled map[string]model.PoseJSON `json:"scaled"`
}

// exportJSON writes the session to a JSON or gzipped JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	clipName := strings.ReplaceAll(b.session.ClipName, " ", "_")
	clipName = strings.ReplaceAll(clipName, ":", "_")
	clipName = strings.ReplaceAll(clipName, string(filepath.Separator), "_")
	if clipName == "" {
		clipName = "session"
	}
	timestamp := b.session.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", clipName, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", clipName, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	s := b.session
	export := SessionExport{
		ClipName:    s.ClipName,
		FPS:         s.FPS,
		HumanHeight: s.HumanHeight,
		StartTime:   s.StartTime.UTC().Format(time.RFC3339),
		Root:        s.Root,
		Bones:       make([]BoneJSON, 0, len(s.Bones)),
		ScaleTable:  make(map[string]float64, len(s.Scales)),
		Frames:      make([]FrameJSON, 0, len(b.frames)),
	}

	for _, bone := range s.Bones {
		export.Bones = append(export.Bones, BoneJSON{
			Name:   bone.Name,
			Parent: bone.Parent,
			Offset: [3]float64(bone.Offset),
		})
	}
	for bone, v := range s.Scales {
		export.ScaleTable[bone] = v
	}
	for _, r := range b.frames {
		export.Frames = append(export.Frames, FrameJSON{
			Index:  r.Index,
			Raw:    model.FrameToJSON(r.Raw),
			Scaled: model.FrameToJSON(r.Scaled),
		})
	}
	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	encoder := json.NewEncoder(gzWriter)
	if err := encoder.Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
