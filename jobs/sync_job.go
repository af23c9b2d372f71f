package jobs

import (
	"log"
	"time"

	"autoreply-server/services"
)

// SyncJob pulls new reviews and questions from marketplaces on a fixed interval
type SyncJob struct {
	sync     *services.SyncService
	interval time.Duration
	stopChan chan bool
}

// NewSyncJob creates a new sync job
func NewSyncJob(sync *services.SyncService, interval time.Duration) *SyncJob {
	return &SyncJob{
		sync:     sync,
		interval: interval,
		stopChan: make(chan bool),
	}
}

// Start begins the sync job
func (j *SyncJob) Start() {
	go j.run()
	log.Printf("🚀 Marketplace sync job started (every %s)", j.interval)
}

// Stop stops the sync job
func (j *SyncJob) Stop() {
	j.stopChan <- true
	log.Println("🛑 Marketplace sync job stopped")
}

func (j *SyncJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := j.sync.Run()
			if stats.NewReviews > 0 || stats.NewQuestions > 0 || stats.Errors > 0 {
				log.Printf("🔄 Sync pass: %d new reviews, %d new questions, %d errors over %d marketplaces",
					stats.NewReviews, stats.NewQuestions, stats.Errors, stats.Marketplaces)
			}
		case <-j.stopChan:
			return
		}
	}
}
