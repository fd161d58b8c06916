package main

import "github.com/nileag/setup-go/cmd"

func main() {
	cmd.Execute()
}
