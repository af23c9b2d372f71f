package services

import (
	"time"

	"autoreply-server/models"
)

// MaxPublishAttempts is the number of delivery attempts before a reply is
// marked terminally failed.
const MaxPublishAttempts = 5

// retryDelays is the fixed backoff schedule, indexed by attempt number - 1.
// The first retry fires immediately since most delivery failures are
// transient; later retries spread out to bound retry storms.
var retryDelays = [MaxPublishAttempts]time.Duration{
	0,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	60 * time.Minute,
}

// RetryDecision is the outcome of applying the retry policy to one failure.
type RetryDecision struct {
	Status       models.ReplyStatus
	RetryCount   int
	ErrorMessage string
	ScheduledAt  *time.Time // set only when Status is scheduled
}

// DecideRetry computes the next state for a reply whose publish attempt
// failed. Pure function of (current retry count, error, now): the attempt
// counter always increments, the reply goes terminal exactly when the counter
// reaches MaxPublishAttempts, otherwise it is re-scheduled with the fixed
// backoff delay. All failures are treated as retryable regardless of cause.
func DecideRetry(retryCount int, errMsg string, now time.Time) RetryDecision {
	attempt := retryCount + 1

	if attempt >= MaxPublishAttempts {
		return RetryDecision{
			Status:       models.ReplyStatusFailed,
			RetryCount:   attempt,
			ErrorMessage: errMsg,
		}
	}

	next := now.Add(retryDelays[attempt-1])
	return RetryDecision{
		Status:       models.ReplyStatusScheduled,
		RetryCount:   attempt,
		ErrorMessage: errMsg,
		ScheduledAt:  &next,
	}
}

// RetryDelayForAttempt exposes the backoff schedule for a 1-based attempt number
func RetryDelayForAttempt(attempt int) time.Duration {
	if attempt < 1 || attempt > MaxPublishAttempts {
		return 0
	}
	return retryDelays[attempt-1]
}
