package schema

import _ "embed"

// ConfigV1Schema contains the JSON schema for gosh rc documents.
//
//go:embed config.v1.json
var ConfigV1Schema []byte
