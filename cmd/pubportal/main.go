package main

import "github.com/researchportal/pubportal/pkg/cli"

func main() {
	cli.Execute()
}
