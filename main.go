package main

import "github.com/kozaktomas/clipslide/cmd"

func main() {
	cmd.Execute()
}
