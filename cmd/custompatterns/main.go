package main

import (
	"github.com/CompassSecurity/custompatterns/internal/cmd"
	"github.com/CompassSecurity/custompatterns/internal/cmd/common"
)

func main() {
	common.Run(cmd.NewRootCmd())
}
