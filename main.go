package main

import "github.com/timvw/dock-tabs/cmd"

func main() {
	cmd.Execute()
}
