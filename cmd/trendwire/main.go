package main

import (
	"trendwire/cmd/cmd"
	"trendwire/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
