package main

import "github.com/notargets/meshtvprep/cmd"

func main() {
	cmd.Execute()
}
