package main

import (
	"nicheexplorer/cmd/handlers"
	"nicheexplorer/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
