package main

import "home-sentinel/cmd/sentinel-server/cmd"

func main() {
	cmd.Execute()
}
