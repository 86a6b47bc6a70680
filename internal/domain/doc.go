// Package domain contains the core entities of the engine: tasks, their
// recurrence rules, reminders and owner contacts. It is independent of any
// specific infrastructure or delivery mechanism.
package domain
