package web

import (
	"embed"
	"html/template"
)

// TemplatesDir - путь к шаблонам относительно корня репозитория, используется при TEMPLATE_DEBUG.
const TemplatesDir = "web/templates"

//go:embed templates/*.html
var templatesFS embed.FS

// ParseTemplates разбирает встроенные шаблоны страниц.
func ParseTemplates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}
