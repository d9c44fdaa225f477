package main

import (
	"github.com/rezoom-ai/promptgate/internal/cli"
)

func main() {
	cli.Execute()
}
