// Package alert contains the alert communication domain: the builder that
// assembles ORU^R40 reports, the classification of inbound reports into
// heartbeat, alarm, acknowledgment or unknown, the replies the manager sends
// back, and the manager statistics.
package alert
