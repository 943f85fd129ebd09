package api

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*
var templateFS embed.FS

var displayZone = time.FixedZone("KST", 9*60*60)

func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"kst": func(t time.Time) string {
			return t.In(displayZone).Format("2006-01-02 15:04") + " KST"
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
