package main

import "github.com/jmcleod/pinvault/cmd/pinvault/cmd"

func main() {
	cmd.Execute()
}
