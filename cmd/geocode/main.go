package main

import "github.com/evyataryagoni/geocoder/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
