package main

import "github.com/samuelfneumann/goddpg/cmd"

func main() {
	cmd.Execute()
}
