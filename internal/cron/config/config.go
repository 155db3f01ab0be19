package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Expired mailbox sweep, every 5 minutes
	CronScheduleExpireMailboxes string `env:"CRON_SCHEDULE_EXPIRE_MAILBOXES" envDefault:"0 */5 * * * *"`
	// Old email purge, hourly
	CronSchedulePurgeEmails string `env:"CRON_SCHEDULE_PURGE_EMAILS" envDefault:"0 0 * * * *"`
}
