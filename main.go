package main

import "snowcraft/cmd"

func main() {
	cmd.Execute()
}
