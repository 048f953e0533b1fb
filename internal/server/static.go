package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

const indexFile = "index.html"

// ServeStatic resolves unmatched GET requests against the public directory:
// exact files first, then clean URLs (/dashboard -> dashboard.html), then
// the landing page. Unknown /api paths stay JSON 404s.
func (s *Server) ServeStatic(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		AbortWithError(c, ErrNotFound)
		return
	}

	reqPath := c.Request.URL.Path
	if strings.HasPrefix(reqPath, "/api/") || reqPath == "/api" {
		AbortWithError(c, ErrNotFound)
		return
	}
	if hasTraversal(reqPath) {
		AbortWithError(c, ErrNotFound)
		return
	}

	if file, ok := resolveStatic(s.cfg.PublicDir, reqPath); ok {
		c.File(file)
		return
	}

	index := filepath.Join(s.cfg.PublicDir, indexFile)
	if !isFile(index) {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.File(index)
}

func resolveStatic(publicDir, reqPath string) (string, bool) {
	clean := path.Clean("/" + reqPath)
	if clean == "/" {
		return "", false
	}

	candidates := []string{clean}
	if path.Ext(clean) == "" {
		candidates = append(candidates, clean+".html", path.Join(clean, indexFile))
	}

	for _, candidate := range candidates {
		full := filepath.Join(publicDir, filepath.FromSlash(candidate))
		if !within(publicDir, full) {
			continue
		}
		if isFile(full) {
			return full, true
		}
	}
	return "", false
}

func hasTraversal(reqPath string) bool {
	for _, segment := range strings.Split(strings.ReplaceAll(reqPath, "\\", "/"), "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

func within(root, full string) bool {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
