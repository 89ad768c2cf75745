package main

import "github.com/NichHarris/intera-client/internal/logging"

func main() {
	logging.Init()
	Execute()
}
