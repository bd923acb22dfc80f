// Package templates holds the email bodies. Each event template defines
// "content" and is rendered inside "layout".
package templates

import "embed"

//go:embed *.html
var FS embed.FS
