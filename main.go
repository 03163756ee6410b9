package main

import "github.com/raysh454/hunter/internal/cli"

func main() {
	cli.Execute()
}
