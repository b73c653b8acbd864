package main

import "github.com/oshokin/acm-simulator/cmd/acm-reporter/cmd"

func main() {
	cmd.Execute()
}
