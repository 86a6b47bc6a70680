// Package kafka carries event envelopes over Kafka topics.
//
// Producer publishes envelopes keyed by their partition key, so the Hash
// balancer places every event of one owner on one partition and consumers
// see them in order. Consumer reads one topic as a member of a consumer
// group and commits offsets only after the event processor has handled or
// dead-lettered a message.
package kafka
