// Package configs provides the embedded configuration template for
// KeywordScout. Embedding at build time keeps the template available in
// every distribution, source builds included.
//
// The template is written by `keywordscout config init` and documents the
// full configuration surface; see internal/config for the load order
// (defaults, then the YAML file, then KWSCOUT_* environment variables).
package configs

import _ "embed"

// ConfigTemplate is the annotated configuration template written by
// `keywordscout config init`.
//
//go:embed config.example.yaml
var ConfigTemplate string
