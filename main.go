package main

import "finnsync/cmd"

func main() {
	cmd.Execute()
}
