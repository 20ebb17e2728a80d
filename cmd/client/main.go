package main

import "scoutsync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
