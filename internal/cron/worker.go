// Package cron runs the scheduled pricelist refresh loop.
package cron

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/namewiz/registrar-pricelist/internal/alerting"
	"github.com/namewiz/registrar-pricelist/internal/metrics"
	"github.com/namewiz/registrar-pricelist/internal/pricelist"
	"github.com/namewiz/registrar-pricelist/internal/storage"
)

const jobName = "refresh_pricelists"

// lockKey identifies the refresh job in pg_advisory_lock space.
const lockKey int64 = 7341

// Run starts the refresh worker: on each tick it regenerates every
// registered registrar, records the run, and alerts on failures. With a
// pgxpool backend a PostgreSQL advisory lock ensures that in a
// multi-instance deployment only one worker executes the job; other
// backends run unlocked, which is fine for single-instance deployments.
func Run(ctx context.Context, driver, dsn string, ttl time.Duration) error {
	st, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	pg, hasLock := st.(*storage.PostgresPoolStorage)
	if !hasLock {
		log.Printf("cron: driver %q has no advisory locks, running unlocked", driver)
	}

	svc := pricelist.NewServiceWithStorage(ttl, st)
	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig())

	// Interval is integer seconds or a standard cron expression.
	intervalSetting := "3600"
	if raw := os.Getenv("PRICELIST_CRON_INTERVAL_SECONDS"); raw != "" {
		intervalSetting = raw
	}

	getNextRun := func(lastRun time.Time) time.Time {
		if v, err := strconv.Atoi(intervalSetting); err == nil && v > 0 {
			return lastRun.Add(time.Duration(v) * time.Second)
		}
		if sched, err := cron.ParseStandard(intervalSetting); err == nil {
			return sched.Next(lastRun)
		}
		return lastRun.Add(time.Hour)
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	nextRun := time.Now()

	log.Printf("cron worker starting, interval=%q driver=%s", intervalSetting, driver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().Before(nextRun) {
				continue
			}
			started := time.Now()

			if hasLock {
				ok, err := pg.TryAdvisoryLock(ctx, lockKey)
				if err != nil {
					log.Printf("cron: acquire advisory lock failed: %v", err)
					metrics.UpdateJobMetrics(jobName, started, err)
					nextRun = getNextRun(time.Now())
					continue
				}
				if !ok {
					log.Printf("cron: advisory lock held by another worker, skipping run")
					nextRun = getNextRun(time.Now())
					continue
				}
			}

			runErr := func() error {
				if hasLock {
					defer func() {
						if err := pg.AdvisoryUnlock(ctx, lockKey); err != nil {
							log.Printf("cron: release advisory lock failed: %v", err)
						}
					}()
				}
				return refreshOnce(ctx, svc, alerter, started)
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)
			recordJobRun(ctx, st, started, runErr)

			if runErr != nil {
				log.Printf("cron: job %s completed with error: %v (duration=%s)", jobName, runErr, time.Since(started))
			} else {
				log.Printf("cron: job %s completed successfully (duration=%s)", jobName, time.Since(started))
			}

			nextRun = getNextRun(time.Now())
		}
	}
}

// refreshOnce regenerates every registered registrar and alerts when any of
// them fail. The returned error is the batch's first failure.
func refreshOnce(ctx context.Context, svc *pricelist.Service, alerter *alerting.Alerter, started time.Time) error {
	batchID := uuid.New().String()
	keys := pricelist.List()
	log.Printf("cron: batch %s refreshing %d registrars", batchID, len(keys))

	res := svc.RefreshAll(ctx, keys)

	if len(res.Errors) == 0 {
		return nil
	}

	failedKeys := make([]string, 0, len(res.Errors))
	for key := range res.Errors {
		failedKeys = append(failedKeys, key)
	}
	sort.Strings(failedKeys)

	failures := make([]alerting.RegistrarFailure, 0, len(failedKeys))
	for _, key := range failedKeys {
		failures = append(failures, alerting.RegistrarFailure{
			Registrar: key,
			Error:     res.Errors[key].Error(),
		})
	}

	alert := alerting.RefreshAlert{
		JobName:       jobName,
		TotalCount:    len(keys),
		SuccessCount:  len(res.Lists),
		FailedCount:   len(res.Errors),
		Duration:      time.Since(started),
		FailedDetails: failures,
		Timestamp:     time.Now().UTC(),
	}
	if err := alerter.SendRefreshAlert(ctx, alert); err != nil {
		log.Printf("cron: batch %s alert delivery failed: %v", batchID, err)
	}

	return fmt.Errorf("batch %s: %d of %d registrars failed (first: %s: %v)",
		batchID, len(res.Errors), len(keys), failedKeys[0], res.Errors[failedKeys[0]])
}

func recordJobRun(ctx context.Context, st storage.Storage, started time.Time, runErr error) {
	success := 1
	errMsg := ""
	if runErr != nil {
		success = 0
		errMsg = runErr.Error()
	}
	job := storage.JobRun{
		Name:           jobName,
		LastRunAt:      started,
		LastDurationMs: time.Since(started).Milliseconds(),
		LastSuccess:    success,
		LastError:      errMsg,
	}
	if err := st.SaveJobRun(ctx, job); err != nil {
		log.Printf("cron: save job run failed: %v", err)
	}
}
