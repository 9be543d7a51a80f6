package main

import "github.com/curaious/teamboard/cmd"

func main() {
	cmd.Execute()
}
