// Package all registers all shell commands.
package all

import (
	// register commands
	_ "github.com/robotalks/firmata.go/pkg/cli/cmds/i2c"
	_ "github.com/robotalks/firmata.go/pkg/cli/cmds/pins"
)
