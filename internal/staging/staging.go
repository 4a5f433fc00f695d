// Package staging manages the per-patient scratch directory that holds
// X-ray images between capture and upload. The directory is created for
// a run, copied into in parallel, and cleared once the report is archived.
package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mkweon/cephauto/internal/ctxlog"
)

// Area is a patient-scoped staging directory under the configured root.
type Area struct {
	dir string
}

// Open prepares the staging directory for one patient, creating it when
// missing. The patient name is sanitized so it is always a single path
// element.
func Open(root, patientName string) (*Area, error) {
	name := sanitize(patientName)
	if name == "" {
		name = "unknown"
	}
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	return &Area{dir: dir}, nil
}

func (a *Area) Dir() string { return a.dir }

// Stage copies the given source files into the staging directory,
// one goroutine per file. It returns the staged paths in the order the
// sources were given.
func (a *Area) Stage(ctx context.Context, sources ...string) ([]string, error) {
	log := ctxlog.FromContext(ctx)
	staged := make([]string, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dst := filepath.Join(a.dir, filepath.Base(src))
			if err := copyFile(src, dst); err != nil {
				return fmt.Errorf("staging %s: %w", filepath.Base(src), err)
			}
			log.Debug("📄 Staged image", "src", src, "dst", dst)
			staged[i] = dst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return staged, nil
}

// List returns the staged image paths sorted by file name.
func (a *Area) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("reading staging dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(a.dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Clear removes the staging directory and everything in it.
func (a *Area) Clear() error {
	if err := os.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("clearing staging dir: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
}
