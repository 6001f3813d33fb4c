package main

import (
	"sharkwire/cmd/handlers"
	"sharkwire/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
