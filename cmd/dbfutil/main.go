package main

import "github.com/Ulysses-Xu/go-xbase/cmd/dbfutil/cmd"

func main() {
	cmd.Execute()
}
