package main

import "github.com/richxcame/trip-quote/cmd/quotectl/command"

func main() {
	command.Execute()
}
