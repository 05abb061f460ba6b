package main

import "github.com/flokli/display-profiled/cmd"

func main() {
	cmd.Execute()
}
