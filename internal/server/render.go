package server

import (
	"bytes"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"blog/internal/avatar"
)

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("January 02, 2006") },
	"avatar": func(email string) string {
		return avatar.URL(email, avatar.DefaultOptions)
	},
	"paragraphs": paragraphs,
	"add":        func(a, b int) int { return a + b },
	"sub":        func(a, b int) int { return a - b },
}

// loadTemplates pairs every page with the shared layout.
func loadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	pages, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, err
	}
	templates := map[string]*template.Template{}
	for _, page := range pages {
		if page == "layout.html" {
			continue
		}
		t, err := template.New(page).Funcs(funcs).ParseFS(fsys, "layout.html", page)
		if err != nil {
			return nil, err
		}
		templates[strings.TrimSuffix(path.Base(page), ".html")] = t
	}
	return templates, nil
}

// paragraphs escapes plain text and keeps its line breaks.
func paragraphs(text string) template.HTML {
	escaped := template.HTMLEscapeString(strings.ReplaceAll(text, "\r\n", "\n"))
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>\n"))
}

// render executes a page into a buffer so a template error can still become
// a clean 500. Queued flash messages are shown and the flash cookie cleared.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	t, ok := s.tmpl[name]
	if !ok {
		s.log.WithField("template", name).Error("template not found")
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	user := s.currentUser(r)
	bag := bagFrom(r)
	data["User"] = user
	data["IsAdmin"] = user.IsAdmin()
	data["Site"] = s.title
	data["Year"] = time.Now().Year()
	data["Flashes"] = bag.drain()

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.WithError(err).WithField("template", name).Error("render failed")
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	if bag.hadCookie {
		http.SetCookie(w, s.flashes.expired())
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, r, status, "error", map[string]any{
		"Status":     status,
		"StatusText": http.StatusText(status),
		"Message":    message,
	})
}
