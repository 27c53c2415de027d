package main

import "github.com/kozaktomas/punch-kiosk/cmd"

func main() {
	cmd.Execute()
}
