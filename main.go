package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/bnema/pgman/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
