package main

import "github.com/naka-gawa/loc-stats/cmd"

func main() {
	cmd.Execute()
}
