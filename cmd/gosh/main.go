package main

import (
	"github.com/Paintersrp/gosh/internal/cli"
	"github.com/Paintersrp/gosh/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
