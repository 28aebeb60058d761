package main

import (
	"github.com/robotalks/rosserial.go/pkg/cli/sh"
	"github.com/robotalks/rosserial.go/pkg/env"

	_ "github.com/robotalks/rosserial.go/pkg/cli/cmds/topics"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
