package preview

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

type PageRenderer struct {
	tmpl *template.Template
}

func NewPageRenderer() (*PageRenderer, error) {
	tmpl, err := template.New("root").ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &PageRenderer{tmpl: tmpl}, nil
}

func (renderer *PageRenderer) Render(writer io.Writer, name string, data any) error {
	return renderer.tmpl.ExecuteTemplate(writer, name, data)
}
