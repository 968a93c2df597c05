package appidentityassets

import _ "embed"

// YAML is the identity compiled into the binary. It mirrors
// `.fulmen/app.yaml` and is used when no identity file can be found on disk.
//
//go:embed app.yaml
var YAML []byte
