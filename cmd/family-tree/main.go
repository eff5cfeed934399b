package main

import (
	"os"

	"family-tree-go/pkg/logger"
)

func main() {
	log := logger.NewFromEnv("family-tree")
	if err := newRootCmd(log).Execute(); err != nil {
		log.Critical("family-tree: command failed", "err", err)
		os.Exit(1)
	}
}
