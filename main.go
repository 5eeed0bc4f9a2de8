package main

import "Tunora/cmd"

func main() {
	cmd.Execute()
}
