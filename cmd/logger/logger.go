package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/bluepulse/bthrm/pkg/hrm"
	"github.com/bluepulse/bthrm/pkg/monitor"
	"github.com/sirupsen/logrus"
)

type config struct {
	name string
	addr string
}

var log = logrus.New()

func main() {

	// Parse command line options
	var (
		cfg config
		m   hrm.Monitor
		err error
	)

	flag.StringVar(&cfg.name, "name", "", "name of remote sensor (empty: any heart rate sensor)")
	flag.StringVar(&cfg.addr, "addr", "", "address of remote sensor (MAC on Linux, UUID on OS X)")
	flag.Parse()

	m, err = monitor.New(
		monitor.WithDeviceName(cfg.name),
		monitor.WithDeviceID(cfg.addr),
	)
	if err != nil {
		log.Fatalf("Failed to initialize heart rate monitor: %s", err)
	}

	m.SetReadingHandler(func(r hrm.Reading) {
		log.Infof("Read DATA from Handler: %v, %v, %.1f, %v", r, m.ConnectionStatus(), m.SmoothedBPM(), m.ConnectedTime())
	})

	readingChan := make(chan hrm.Reading, 256)
	m.SetReadingChannel(readingChan)

	stateChan := make(chan hrm.ConnectionStatus, 16)
	m.SetStateChangeChannel(stateChan)

	errChan := make(chan *hrm.AdapterError, 16)
	m.SetErrorChannel(errChan)

	go func() {
		for st := range stateChan {
			log.Warnf("State change: %v", st)
		}
	}()
	go func() {
		for aerr := range errChan {
			log.Warnf("Error: %v (user actionable: %v)", aerr, aerr.UserActionable())
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Infof("Got signal, terminating connection to device")
		m.Close()
		os.Exit(0)
	}()

	m.Start()

	for r := range readingChan {
		log.Infof("Read DATA from Channel: %v, %v, %.1f, %v", r, m.ConnectionStatus(), m.SmoothedBPM(), m.ConnectedTime())
	}
}
