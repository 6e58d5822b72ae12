package main

import "github.com/entrepeneur4lyf/spark/cmd/spark/cmd"

func main() {
	cmd.Execute()
}
