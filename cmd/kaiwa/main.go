package main

import "kaiwa/cmd/kaiwa/cmd"

func main() {
	cmd.Execute()
}
