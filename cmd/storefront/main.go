package main

import "github.com/thisisprabalapndey/pathpooja/internal/cmd"

func main() {
	cmd.Execute()
}
