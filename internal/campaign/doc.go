// Package campaign defines the notification campaign model read by the
// scheduler.
//
// Campaigns come in two variants: a recurring pool (a date range, a daily
// time window, a slot count and a pool of messages) and a single message
// with an explicit list of send times. The admin app owns authoring and
// editing; festpushd only ever reads them.
//
// Dates are calendar dates formatted "2006-01-02" and times of day are
// "HH:mm" strings, both interpreted in the festival's configured timezone.
package campaign
