package main

import (
	"fmt"

	"github.com/homespark/rt-coordination-service/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
