package main

import "github.com/oshokin/acm-simulator/cmd/acm-manager/cmd"

func main() {
	cmd.Execute()
}
