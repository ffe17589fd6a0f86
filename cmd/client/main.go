package main

import "syncpoint/cmd/client/cmd"

func main() {
	cmd.Execute()
}
