package templates

import "html/template"

var funcs = template.FuncMap{
	"indicator": indicator,
}

// indicator renders a "Yes"/other field as a check or a cross
func indicator(value string) string {
	if value == "Yes" {
		return "✔"
	}
	return "✖"
}
