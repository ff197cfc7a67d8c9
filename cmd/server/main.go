package main

import "storyline-server/cmd/server/cli"

func main() {
	cli.Execute()
}
