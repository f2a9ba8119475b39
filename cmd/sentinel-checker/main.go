package main

import "home-sentinel/cmd/sentinel-checker/cmd"

func main() {
	cmd.Execute()
}
