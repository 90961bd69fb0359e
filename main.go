package main

import "github.com/Jacob-Makopo/FileWhatwhat/cmd"

func main() {
	cmd.Execute()
}
