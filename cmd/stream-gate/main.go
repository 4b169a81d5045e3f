package main

import "github.com/Stream-Gate/Streamgate/cmd/stream-gate/cmd"

func main() {
	cmd.Execute()
}
