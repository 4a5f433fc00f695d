// Package images stages the patient's X-ray files ahead of upload. It
// picks up images from the configured source directory, or an explicit
// file list, and copies them into the per-patient staging area.
package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mkweon/cephauto/internal/ctxlog"
	"github.com/mkweon/cephauto/internal/registry"
	"github.com/mkweon/cephauto/internal/session"
	"github.com/mkweon/cephauto/internal/staging"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of the 'stage_images' step block.
type Input struct {
	// Source is a directory scanned for image files.
	Source string `hcl:"source,optional"`
	// Files stages an explicit list instead of scanning Source.
	Files []string `hcl:"files,optional"`
}

// Output is what the step records in the run state.
type Output struct {
	StagedFiles []string
}

// OnRunStage copies the selected images into the staging area and
// records them in the session for the upload step.
func OnRunStage(ctx context.Context, sess *session.Session, input any) (any, error) {
	logger := ctxlog.FromContext(ctx)
	in := input.(*Input)

	sources := in.Files
	if len(sources) == 0 {
		if in.Source == "" {
			return nil, fmt.Errorf("stage_images needs either source or files")
		}
		found, err := scanImages(in.Source)
		if err != nil {
			return nil, err
		}
		sources = found
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no image files found in %s", in.Source)
	}

	name := "unknown"
	if p := sess.Patient(); p != nil && p.FullName() != "" {
		name = p.FullName()
	}

	area, err := staging.Open(sess.Settings.Paths.Staging, name)
	if err != nil {
		return nil, err
	}

	staged, err := area.Stage(ctx, sources...)
	if err != nil {
		return nil, err
	}

	sess.SetStagedFiles(staged)
	logger.Info("🗂️ Images staged", "count", len(staged), "dir", area.Dir())
	return &Output{StagedFiles: staged}, nil
}

func scanImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading image source dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("stage_images", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunStage,
	})
}
