// Package event provides the canonical event record and its field normalizers.
//
// The event package turns raw listing text into normalized records: free-text
// dates are parsed into ISO calendar dates, locations are classified against a
// region keyword set, and every record is assigned a deterministic unique ID
// derived from its normalized title and canonical URL. It also detects
// field-level changes between a stored record and a freshly scraped one.
package event
