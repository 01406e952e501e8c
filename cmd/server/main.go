package main

import "github.com/eventviewer/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
