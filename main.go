package main

import "github.com/grasdvirus/double-words-sub000/cmd"

func main() {
	cmd.Execute()
}
