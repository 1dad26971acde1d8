package main

import "github.com/udict/udict/cmd"

func main() {
	cmd.Execute()
}
