package main

import (
	"github.com/robotalks/firmata.go/pkg/cli/sh"
	"github.com/robotalks/firmata.go/pkg/env"

	_ "github.com/robotalks/firmata.go/pkg/cli/cmds/all"
)

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
