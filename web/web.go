// Package web embeds the static assets served to embedding sites.
package web

import _ "embed"

// WidgetJS is the embeddable chat widget script served at /webchat/widget.js.
//
//go:embed widget.js
var WidgetJS []byte
