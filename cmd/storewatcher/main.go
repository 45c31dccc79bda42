package main

import (
	"pipeline-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
