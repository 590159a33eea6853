package main

import "github.com/MeKo-Tech/geomeasure/cmd/geomeasure/cmd"

func main() {
	cmd.Execute()
}
