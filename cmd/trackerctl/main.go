package main

import "github.com/kjstillabower/project-tracker-service/internal/cli"

func main() {
	cli.Execute()
}
