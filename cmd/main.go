package main

import cmd "github.com/kerbaras/mangacache/cmd/mangas"

func main() {
	cmd.Execute()
}
