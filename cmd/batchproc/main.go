package main

import (
	"os"

	"github.com/chuang453/batch-process/pkg/fileops"
	"github.com/chuang453/batch-process/pkg/recorders"
	"github.com/chuang453/batch-process/pkg/registry"
)

// processors is the registry the CLI commands dispatch into
var processors = registry.NewProcessors()

func main() {
	fileops.Register(processors)
	recorders.Register(processors)

	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
