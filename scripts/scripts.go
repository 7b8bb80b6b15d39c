// Package scripts embeds the default archive. The root of FS is the archive
// root ":/".
package scripts

import "embed"

//go:embed lib vendor examples
var FS embed.FS
