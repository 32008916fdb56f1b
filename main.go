package main

import "github.com/Norgate-AV/mdq/cmd"

func main() {
	cmd.Execute()
}
