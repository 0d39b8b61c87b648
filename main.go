package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/abmishra1234/DVR-Feature-Livestream/worker"
)

func init() {
	logrus.SetLevel(logrus.DebugLevel)
	logrus.Info("Initializing dvr")
}

func main() {
	configPath := flag.String("config", "default", "configuration path")
	flag.Parse()

	c := worker.NewConfig(*configPath)

	w, err := worker.NewWorker(c)
	if err != nil {
		logrus.Panic("Cannot create worker ", err)
	}

	err = w.Listen()
	if err != nil {
		logrus.Panic("Cannot listen worker ", err)
	}

	err = w.Serve()
	if err != nil {
		logrus.Panic("Cannot serve worker ", err)
	}

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	logrus.Info(<-sigch)
	w.Stop()
}
