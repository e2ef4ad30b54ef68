package main

import "github.com/wormhole-demo/circle-integration/cmd"

func main() {
	cmd.Execute()
}
