package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"

	"github.com/robotalks/firmata.go/pkg/bridge"
	"github.com/robotalks/firmata.go/pkg/env"
	"github.com/robotalks/firmata.go/pkg/framework"
	"github.com/robotalks/firmata.go/pkg/server"
)

func init() {
	env.SetupServiceFlags()
}

func main() {
	flag.Parse()

	conf := env.NewConfig()
	ctx := context.Background()
	drv, closer := conf.MustConnect(ctx)
	defer closer.Close()

	runnables := []framework.Runnable{
		framework.NamedRun("driver", framework.RunFunc(drv.Run)),
	}
	if conf.Listen != "" {
		srv := server.New(drv.Handle())
		srv.Addr = conf.Listen
		runnables = append(runnables, srv)
	}
	if conf.MQTTURL != "" {
		connCtx, cancel := context.WithTimeout(ctx, conf.Timeout)
		pub, q, err := bridge.Connect(connCtx, conf.MQTTURL, conf.BoardID, drv.Handle())
		cancel()
		if err != nil {
			log.Fatalln(err)
		}
		defer q.Close()
		runnables = append(runnables, pub)
	}

	err := framework.NewRunner().HandleSignals().StopAll().Go(runnables...).Wait()
	if err != nil {
		log.Fatalln(err)
	}
}
