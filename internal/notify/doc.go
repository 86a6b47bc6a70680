// Package notify delivers reminder.due events to their channels.
//
// The Dispatcher claims each (event, channel) pair in the idempotency
// ledger before sending, so a redelivered reminder never notifies twice on
// the same channel. Channels report an Outcome; transient outcomes are
// retried with capped exponential backoff and every terminal outcome is
// announced as notification.sent or notification.failed.
package notify
