// Package types defines the Market store interface, the item, tag and price
// entities it serves, the per-operation input records, and the sentinel
// errors callers classify failures by.
package types
