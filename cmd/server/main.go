package main

import "github.com/Togather-Foundation/attendance/cmd/server/cmd"

func main() {
	cmd.Execute()
}
