package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var pageFS embed.FS

type pageSet struct {
	set *pongo2.TemplateSet
}

func newPageSet() (*pageSet, error) {
	sub, err := fs.Sub(pageFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("web: open templates: %w", err)
	}
	return &pageSet{set: pongo2.NewSet("carepulse-pages", pongo2.NewFSLoader(sub))}, nil
}

func (p *pageSet) execute(name string, ctx pongo2.Context) ([]byte, error) {
	tpl, err := p.set.FromCache(name)
	if err != nil {
		return nil, fmt.Errorf("load page %q: %w", name, err)
	}
	out, err := tpl.ExecuteBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("execute page %q: %w", name, err)
	}
	return out, nil
}

func (s *Server) renderPage(c *gin.Context, status int, name string, ctx pongo2.Context) {
	out, err := s.pages.execute(name, ctx)
	if err != nil {
		s.logger.Error("page render failed", map[string]interface{}{"page": name, "error": err.Error()})
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", out)
}

func (s *Server) renderError(c *gin.Context, status int, title, message string) {
	s.renderPage(c, status, "error.html", pongo2.Context{
		"title":   title,
		"message": message,
	})
}
