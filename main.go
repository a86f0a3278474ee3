package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/showcontroller/oscws/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}
