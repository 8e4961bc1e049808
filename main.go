package main

import "github.com/netsynth/topogen/cmd"

func main() {
	cmd.Execute()
}
