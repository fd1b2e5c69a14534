package common

import (
	"time"

	"github.com/sirupsen/logrus"
)

type Benchmarker struct {
	start time.Time
	label string
	log   logrus.FieldLogger
}

func RuntimeBenchmark[T any](log logrus.FieldLogger, label string, functionUnderTest func() (T, error)) (T, error) {
	start := time.Now()
	result, err := functionUnderTest()
	log.WithFields(logrus.Fields{"bench": label, "elapsed": time.Since(start)}).Debug("benchmark")
	return result, err
}

func NewBenchmarker(log logrus.FieldLogger, label string) *Benchmarker {
	return &Benchmarker{start: time.Now(), label: label, log: log}
}

func (benchmarker *Benchmarker) Elapsed() time.Duration {
	return time.Since(benchmarker.start)
}

func (benchmarker *Benchmarker) Close() {
	benchmarker.log.WithFields(logrus.Fields{
		"bench":   benchmarker.label,
		"elapsed": benchmarker.Elapsed(),
	}).Debug("benchmark")
}
