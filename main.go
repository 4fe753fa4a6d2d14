package main

import "github.com/kozaktomas/facelock/cmd"

func main() {
	cmd.Execute()
}
