package jobs

import (
	"log"
	"time"

	"autoreply-server/services"
)

// DispatcherJob runs the publish dispatcher on a fixed interval
type DispatcherJob struct {
	dispatcher *services.DispatcherService
	interval   time.Duration
	stopChan   chan bool
}

// NewDispatcherJob creates a new dispatcher job
func NewDispatcherJob(dispatcher *services.DispatcherService, interval time.Duration) *DispatcherJob {
	return &DispatcherJob{
		dispatcher: dispatcher,
		interval:   interval,
		stopChan:   make(chan bool),
	}
}

// Start begins the dispatcher job
func (j *DispatcherJob) Start() {
	go j.run()
	log.Printf("🚀 Dispatcher job started (every %s)", j.interval)
}

// Stop stops the dispatcher job
func (j *DispatcherJob) Stop() {
	j.stopChan <- true
	log.Println("🛑 Dispatcher job stopped")
}

// run executes the dispatcher on every tick
func (j *DispatcherJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := j.dispatcher.Dispatch()
			if stats.Processed > 0 || stats.Swept > 0 {
				log.Printf("📬 Dispatch pass: %d processed, %d succeeded, %d failed, %d swept",
					stats.Processed, stats.Succeeded, stats.Failed, stats.Swept)
			}
		case <-j.stopChan:
			return
		}
	}
}
