package main

import "github.com/bestruirui/sprout/cmd"

func main() {
	cmd.Execute()
}
