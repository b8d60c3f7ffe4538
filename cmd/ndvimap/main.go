package main

import "github.com/MeKo-Tech/ndvimap/internal/cmd"

func main() {
	cmd.Execute()
}
