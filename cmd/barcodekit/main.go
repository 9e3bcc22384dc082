package main

import "github.com/MeKo-Tech/barcodekit/cmd/barcodekit/cmd"

func main() {
	cmd.Execute()
}
