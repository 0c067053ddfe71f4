package main

import "canvashistory/cmd/canvas-history/cmd"

func main() {
	cmd.Execute()
}
