package jobs

import (
	"log"
	"time"

	"autoreply-server/services"
)

// GeneratorJob runs the draft generator on a fixed interval
type GeneratorJob struct {
	generator *services.GeneratorService
	interval  time.Duration
	stopChan  chan bool
}

// NewGeneratorJob creates a new generator job
func NewGeneratorJob(generator *services.GeneratorService, interval time.Duration) *GeneratorJob {
	return &GeneratorJob{
		generator: generator,
		interval:  interval,
		stopChan:  make(chan bool),
	}
}

// Start begins the generator job
func (j *GeneratorJob) Start() {
	go j.run()
	log.Printf("🚀 Draft generator job started (every %s)", j.interval)
}

// Stop stops the generator job
func (j *GeneratorJob) Stop() {
	j.stopChan <- true
	log.Println("🛑 Draft generator job stopped")
}

func (j *GeneratorJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := j.generator.Run()
			if stats.Drafted > 0 || stats.Promoted > 0 || stats.Errors > 0 {
				log.Printf("✍️ Generator pass: %d drafted, %d promoted, %d errors over %d marketplaces",
					stats.Drafted, stats.Promoted, stats.Errors, stats.Marketplaces)
			}
		case <-j.stopChan:
			return
		}
	}
}
