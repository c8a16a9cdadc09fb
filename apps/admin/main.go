package main

import (
	"log"
	"os"

	"github.com/paridhisingla/unisync/core"
	logsvc "github.com/paridhisingla/unisync/services/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	cli := &commandLine{conf: conf, logger: logger}
	defer cli.close()

	if err := cli.rootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}
