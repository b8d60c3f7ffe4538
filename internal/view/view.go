// Package view renders the page and its sidebar from a Model.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/MeKo-Tech/ndvimap/internal/render"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

var funcs = template.FuncMap{
	"loading": func(v render.View) bool { return v.Phase == render.PhaseLoading },
	"failed":  func(v render.View) bool { return v.Phase == render.PhaseFailed },
	"success": func(v render.View) bool { return v.Phase == render.PhaseSuccess },
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Page writes the full page.
func (r *Renderer) Page(w io.Writer, m Model) error {
	return r.tmpl.ExecuteTemplate(w, "page.html", m)
}

// Sidebar writes the sidebar fragment.
func (r *Renderer) Sidebar(w io.Writer, m Model) error {
	return r.tmpl.ExecuteTemplate(w, "sidebar", m)
}

// SidebarHTML renders the sidebar fragment to a string.
func (r *Renderer) SidebarHTML(m Model) (string, error) {
	var buf bytes.Buffer
	if err := r.Sidebar(&buf, m); err != nil {
		return "", err
	}
	return buf.String(), nil
}
