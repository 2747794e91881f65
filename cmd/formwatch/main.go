// Package main is the entry point for the formwatch service.
package main

import "github.com/formwatch/formwatch/cmd"

func main() {
	cmd.Execute()
}
