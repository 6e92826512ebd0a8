package main

import "github.com/MeKo-Tech/msrcr/internal/cmd"

func main() {
	cmd.Execute()
}
