// Command gmjoin is a sample binary demonstrating C1-C7 wired end to end:
// it loads a session configuration, joins a conference, and logs every
// observer callback, including each received audio/video frame (at trace
// level). It does not write media to disk. It is a peripheral
// demonstration, not part of the core client library.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/config"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/mediaentries"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/datachannel/participants"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/mediasession"
	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/profiling"
	gmstatus "github.com/joshuashevchuk1/gm-media-api-sub001/pkg/status"
)

func main() {
	configFilePath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	cpuProfile := flag.String("cpuProfile", "", "write a CPU profile to this path")
	memProfile := flag.String("memProfile", "", "write a memory profile to this path")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *cpuProfile != "" {
		stop := profiling.InitCPUProfiling(cpuProfile)
		defer stop()
	}
	if *memProfile != "" {
		stop := profiling.InitMemoryProfiling(memProfile)
		defer stop()
	}

	cfg, err := config.LoadConfig(*configFilePath)
	if err != nil {
		logrus.WithError(err).Fatal("could not load config")
	}

	switch cfg.LogLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	observer := &loggingObserver{logger: logrus.WithField("component", "gmjoin")}

	session, err := mediasession.New(cfg, observer, logrus.NewEntry(logrus.StandardLogger()))
	if err != nil {
		logrus.WithError(err).Fatal("could not create session")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	go func() {
		<-sigCh
		logrus.Info("received shutdown signal, leaving conference")
		_ = session.Leave()
		cancel()
	}()

	if err := session.Connect(ctx); err != nil {
		logrus.WithError(err).Fatal("could not connect to conference")
	}

	<-ctx.Done()
}

// loggingObserver logs every event and demonstrates the collaborator
// contract; a real embedder would render audio/video instead.
type loggingObserver struct {
	logger *logrus.Entry
}

func (o *loggingObserver) OnJoined() {
	o.logger.Info("joined conference")
}

func (o *loggingObserver) OnDisconnected(status gmstatus.Status) {
	o.logger.WithField("status", status.Error()).Info("disconnected")
}

func (o *loggingObserver) OnResourceUpdate(update mediasession.ResourceUpdate) {
	o.logger.WithField("channel", update.Channel).Debug("resource update")

	if update.Participants != nil {
		logParticipants(o.logger, update.Participants)
	}
	if update.MediaEntries != nil {
		logMediaEntries(o.logger, update.MediaEntries)
	}
}

func (o *loggingObserver) OnAudioFrame(frame mediasession.AudioFrame) {
	o.logger.WithField("track", frame.Track.TrackID).Trace("audio frame")
}

func (o *loggingObserver) OnVideoFrame(frame mediasession.VideoFrame) {
	o.logger.WithField("track", frame.Track.TrackID).Trace("video frame")
}

func logParticipants(logger *logrus.Entry, update *participants.Update) {
	logger.WithField("count", len(update.Resources)).Debug("participants updated")
}

func logMediaEntries(logger *logrus.Entry, update *mediaentries.Update) {
	logger.WithField("count", len(update.Resources)).Debug("media entries updated")
}
