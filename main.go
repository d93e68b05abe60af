package main

import "github.com/jfmyers9/playkeeper/cmd"

func main() {
	cmd.Execute()
}
