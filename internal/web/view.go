package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
)

// ViewRenderer renders named views with the given data.
type ViewRenderer interface {
	Render(w io.Writer, name string, data any) error
}

// FSRenderer renders views from *.tmpl files in the root of a file
// system. Templates are parsed on every render, which keeps local
// development simple; the embedded FS makes this cheap enough.
type FSRenderer struct {
	fs fs.FS
}

func NewFSRenderer(fsys fs.FS) *FSRenderer {
	return &FSRenderer{fs: fsys}
}

func (r *FSRenderer) Render(w io.Writer, name string, data any) error {
	if err := validateViewName(name); err != nil {
		return err
	}

	tmpl, err := template.ParseFS(r.fs, name+".tmpl")
	if err != nil {
		return err
	}

	return tmpl.Execute(w, data)
}

// validateViewName checks if all characters are alphanumeric, dashes or
// underscores. View names are used to construct filenames and we don't
// want to inadvertently allow directory traversal.
func validateViewName(name string) error {
	for _, c := range name {
		if c == '-' || c == '_' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			continue
		}
		return fmt.Errorf("invalid character %v in view name: %s", c, name)
	}
	return nil
}
