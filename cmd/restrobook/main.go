package main

import "github.com/example/restrobook/cmd"

func main() {
	cmd.Execute()
}
