package main

import "github.com/jsphweid/leadsheet/cmd"

func main() {
	cmd.Execute()
}
