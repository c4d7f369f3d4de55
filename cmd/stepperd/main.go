package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/stepctl/pkg/console"
	"github.com/robotalks/stepctl/pkg/env"
	"github.com/robotalks/stepctl/pkg/framework"
	"github.com/robotalks/stepctl/pkg/stepper"
	"github.com/robotalks/stepctl/pkg/supervisor"
	"github.com/robotalks/stepctl/pkg/telemetry"
)

//go-build: CGO_ENABLED=0

var version = "dev"

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.NewConfig()
	if err := conf.Validate(); err != nil {
		log.Fatalln(err)
	}
	boardConf := conf.MustBoardConfig()
	lines, hw, err := boardConf.Open()
	if err != nil {
		log.Fatalln(err)
	}
	defer hw.Close()

	transport, err := console.OpenTransport(conf.Port, conf.Baud)
	if err != nil {
		log.Fatalln(err)
	}
	defer transport.Close()

	loop := framework.NewLoop().WithInterval(conf.Poll)

	exec := stepper.NewExecutor(lines)
	exec.HalfPeriod = conf.HalfPeriod
	exec.Report = func(r stepper.MotionReport) {
		loop.PostMessage(&r)
		loop.TriggerNext()
	}

	port := console.NewPort(transport)
	sup := supervisor.New(nil, conf.SupervisorDiscipline())
	units := []string{port.Name(), sup.Name()}

	var ctls []framework.LoopAdder
	if conf.MQTTURL != "" {
		pub, err := telemetry.NewPublisher(conf.MQTTURL, telemetry.Meta{
			ID:      conf.ID(),
			Version: version,
			Backend: boardConf.Backend,
			Port:    conf.Port,
			Started: time.Now(),
		})
		if err != nil {
			log.Fatalln(err)
		}
		ctls = append(ctls, pub)
		units = append(units, pub.Name())
	}
	metrics := telemetry.NewMetrics(conf.MetricsAddr)
	ctls = append(ctls, metrics)
	units = append(units, metrics.Name())

	diag := &console.Diagnostics{
		Started: time.Now(),
		Version: version,
		Board:   boardConf.Backend,
		Units:   func() []string { return units },
		Sleeper: exec.Sleeper,
		Period:  exec.HalfPeriod,
	}
	table := console.NewTable(console.StepperCommands(&stepper.Axis{Lines: lines}, exec)...).
		Add(diag.Commands()...)

	launcher := &console.ShellLauncher{
		Port:          port,
		Table:         table,
		Banner:        "stepctl " + version,
		LocalTerminal: console.IsLocal(conf.Port),
	}
	sup.Launcher = supervisor.LaunchFunc(func(ctx context.Context) (supervisor.Handle, error) {
		sess, err := launcher.Launch(ctx)
		if err != nil {
			return nil, err
		}
		return sess, nil
	})

	glog.Infof("stepctl %s on %s (%s board, %s supervision)",
		version, conf.Port, boardConf.Backend, sup.Discipline)
	runner := framework.NewRunner().HandleSignals()
	ctx, stop := context.WithCancel(runner.Context)
	defer stop()

	// the device stops once the console transport is gone
	loop.AddRunnable(port.Runner(func(err error) {
		if err != nil {
			glog.Errorf("console transport failed, stopping: %v", err)
		} else {
			glog.Info("console transport closed, stopping")
		}
		stop()
	}))
	loop.Add(sup)
	loop.Add(ctls...)

	runner.GoWith(ctx, loop)
	if err := runner.Wait(); err != nil {
		glog.Flush()
		log.Fatalln(err)
	}
}
