package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/mailcat/mailcat/config"
	cron_config "github.com/mailcat/mailcat/internal/cron/config"
	"github.com/mailcat/mailcat/internal/logger"
	"github.com/mailcat/mailcat/internal/repository"
	"github.com/mailcat/mailcat/internal/tracing"
	"github.com/mailcat/mailcat/internal/utils"
)

// CONSTANTS
const (
	// GroupLifecycle is the group for mailbox lifecycle jobs
	GroupLifecycle = "lifecycle"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupLifecycle: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg    *config.Config
	log    logger.Logger
	cron   *cronv3.Cron
	k8s    kubernetes.Interface
	stopCh chan struct{}
	// stopOnce makes Stop idempotent; leader loss and process shutdown can
	// both call it.
	stopOnce sync.Once
	jobIDs   map[string]cronv3.EntryID
	repos    *repository.Repositories
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, repos *repository.Repositories) *CronManager {
	return &CronManager{
		cfg:    cfg,
		log:    log,
		k8s:    k8s,
		stopCh: make(chan struct{}),
		jobIDs: make(map[string]cronv3.EntryID),
		repos:  repos,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "mailcat-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		ctx := context.Background()
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	cm.stopOnce.Do(func() {
		if cm.cron != nil {
			cm.log.Info("Stopping cron manager")
			ctx := cm.cron.Stop()
			// Wait for jobs to finish
			<-ctx.Done()
		}
		close(cm.stopCh)
	})
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleExpireMailboxes != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleExpireMailboxes, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupLifecycle].Lock()
			defer jobLocks.locks[GroupLifecycle].Unlock()
			cm.expireMailboxes()
		})
		if err != nil {
			cm.log.Fatalf("Could not add expire mailboxes cron job: %v", err)
		}
		cm.jobIDs["expire_mailboxes"] = id
		cm.log.Infof("Registered expire mailboxes job with schedule: %s", cronConfig.CronScheduleExpireMailboxes)
	}

	if cronConfig.CronSchedulePurgeEmails != "" {
		id, err := c.AddFunc(cronConfig.CronSchedulePurgeEmails, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupLifecycle].Lock()
			defer jobLocks.locks[GroupLifecycle].Unlock()
			cm.purgeEmails()
		})
		if err != nil {
			cm.log.Fatalf("Could not add purge emails cron job: %v", err)
		}
		cm.jobIDs["purge_emails"] = id
		cm.log.Infof("Registered purge emails job with schedule: %s", cronConfig.CronSchedulePurgeEmails)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// expireMailboxes removes mailboxes whose TTL has elapsed. Their emails are
// purged in the same sweep so tokens and content disappear together.
func (cm *CronManager) expireMailboxes() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.expireMailboxes")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	now := utils.Now()

	expired, err := cm.repos.MailboxRepository.ListExpired(ctx, now)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list expired mailboxes: %v", err)
		return
	}

	for _, mailbox := range expired {
		if err := cm.repos.EmailRepository.DeleteByMailbox(ctx, mailbox.ID); err != nil {
			tracing.TraceErr(span, err)
			cm.log.Errorf("Failed to delete emails of mailbox %s: %v", mailbox.ID, err)
			return
		}
	}

	removed, err := cm.repos.MailboxRepository.DeleteExpired(ctx, now)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to expire mailboxes: %v", err)
		return
	}

	if removed > 0 {
		cm.log.Infof("Expired %d mailboxes", removed)
	}
}

// purgeEmails removes emails older than the retention window, including
// those belonging to mailboxes that already expired.
func (cm *CronManager) purgeEmails() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.purgeEmails")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	retention := time.Duration(cm.cfg.AppConfig.EmailRetentionHours) * time.Hour
	cutoff := utils.Now().Add(-retention)

	removed, err := cm.repos.EmailRepository.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to purge emails: %v", err)
		return
	}

	if removed > 0 {
		cm.log.Infof("Purged %d emails older than %s", removed, cutoff)
	}
}
