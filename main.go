package main

import "github.com/KaramelBytes/claridata/cmd"

func main() {
	cmd.Execute()
}
