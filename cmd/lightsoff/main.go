package main

import (
	"os"

	"github.com/sqlxpert/lights-off-aws/internal/logx"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logx.New("ERROR", os.Stderr).Critical("main.fatal", err.Error())
		os.Exit(1)
	}
}
