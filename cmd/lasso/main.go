package main

import "github.com/MeKo-Tech/lasso/cmd/lasso/cmd"

func main() {
	cmd.Execute()
}
