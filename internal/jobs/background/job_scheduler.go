package background

import (
	"context"
	"log"
	"sync"
	"time"

	"graphgate/internal/jobs"

	"github.com/go-co-op/gocron/v2"
)

// JobScheduler manages the periodic background jobs, currently the
// stuck-provisioning sweep.
type JobScheduler struct {
	scheduler gocron.Scheduler
	sweeper   *jobs.ProvisionSweeper
	jobJobs   map[string]gocron.Job
	mu        sync.RWMutex
}

func NewJobScheduler(sweeper *jobs.ProvisionSweeper, sweepInterval time.Duration) *JobScheduler {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	js := &JobScheduler{
		scheduler: scheduler,
		sweeper:   sweeper,
		jobJobs:   make(map[string]gocron.Job),
	}

	js.registerJobs(sweepInterval)

	return js
}

func (js *JobScheduler) Start() error {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
	return nil
}

func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs(sweepInterval time.Duration) {
	sweepJob, err := js.scheduler.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(js.runProvisionSweep, context.Background()),
		gocron.WithName("provision-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create provision sweep job: %v", err)
	} else {
		js.jobJobs["provision-sweep"] = sweepJob
	}

	log.Printf("Registered %d background jobs", len(js.jobJobs))
}

func (js *JobScheduler) runProvisionSweep(ctx context.Context) error {
	dispatched, err := js.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	if dispatched > 0 {
		log.Printf("Provision sweep re-dispatched %d stuck domains", dispatched)
	}
	return nil
}

// GetJobStatus returns information about scheduled jobs.
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	status := make(map[string]interface{})
	status["total_jobs"] = len(js.jobJobs)
	names := make([]string, 0, len(js.jobJobs))
	for name := range js.jobJobs {
		names = append(names, name)
	}
	status["jobs"] = names
	return status
}
