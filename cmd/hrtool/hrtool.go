package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bluepulse/bthrm/pkg/api"
	"github.com/bluepulse/bthrm/pkg/hrm"
	"github.com/bluepulse/bthrm/pkg/mock"
	"github.com/bluepulse/bthrm/pkg/monitor"
	"github.com/sirupsen/logrus"
)

type config struct {
	name    string
	addr    string
	rssi    int
	apiAddr string

	useMock bool
	debug   bool
}

var log = logrus.New()

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() (err error) {

	// Parse command line options
	var (
		cfg config
		m   hrm.Monitor
	)

	flag.StringVar(&cfg.name, "name", "", "name of remote sensor (empty: any heart rate sensor)")
	flag.StringVar(&cfg.addr, "addr", "", "address of remote sensor (MAC on Linux, UUID on OS X)")
	flag.IntVar(&cfg.rssi, "rssi", -90, "weakest acceptable signal strength (dBm)")
	flag.StringVar(&cfg.apiAddr, "api", "", "endpoint to serve the REST API on (empty: disabled)")

	flag.BoolVar(&cfg.useMock, "mock", false, "use a simulated sensor instead of the bluetooth adapter")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.Parse()

	if cfg.useMock {
		m, err = mock.New()
	} else {
		m, err = monitor.New(
			monitor.WithDeviceName(cfg.name),
			monitor.WithDeviceID(cfg.addr),
			monitor.WithSignalThreshold(cfg.rssi),
			monitor.WithLogger(hrm.NewDefaultLogger(cfg.debug)),
		)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize heart rate monitor: %s", err)
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			err = cerr
			return
		}
	}()

	m.SetStateChangeHandler(func(status hrm.ConnectionStatus) {
		log.Infof("Connection state: %s", status.State)
	})
	m.SetReadingHandler(func(r hrm.Reading) {
		log.Infof("%s (smoothed %.1f bpm, connected for %v)", r, r.Smoothed, m.ConnectedTime())
	})
	m.SetErrorHandler(func(aerr *hrm.AdapterError) {
		if aerr.UserActionable() {
			log.Errorf("Bluetooth unavailable (%s), user action required", aerr)
			return
		}
		log.Warnf("Monitor error: %s", aerr)
	})

	if cfg.apiAddr != "" {
		api.New(m, cfg.apiAddr)
	}

	m.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	log.Infof("Got signal, terminating connection to device")
	return nil
}
