// Package appfs exposes the files embedded in the binaries.
package appfs

import "embed"

const (
	FixturesDir       = "assets/fixtures"
	EmailTemplatesDir = "assets/templates/email"
	CommonPasswords   = "assets/common-passwords.txt"
)

//go:embed all:assets
var FS embed.FS
