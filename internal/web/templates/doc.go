// Package templates holds the HTML fragments served to HTMX clients.
// Components are written in .templ files; run `templ generate` after
// editing them.
package templates
