package main

import "github.com/signet-dev/signet/cmd/signetctl/cmd"

func main() {
	cmd.Execute()
}
